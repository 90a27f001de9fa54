package handlers

import (
	"bufio"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/job-board/internal/api/dto"
	"github.com/spec-kit/job-board/internal/auth"
	"github.com/spec-kit/job-board/internal/domain"
	"github.com/spec-kit/job-board/internal/service"
	apperrors "github.com/spec-kit/job-board/pkg/util/errorutil"
)

const defaultPageSize = 50

// JobsHandler exposes job postings and their per-job tools.
type JobsHandler struct {
	jobs    *service.JobService
	cvs     *service.CVService
	reports *service.ReportService
}

// NewJobsHandler constructs handler.
func NewJobsHandler(jobs *service.JobService, cvs *service.CVService, reports *service.ReportService) *JobsHandler {
	return &JobsHandler{jobs: jobs, cvs: cvs, reports: reports}
}

// ListJobs handles GET /jobs.
func (h *JobsHandler) ListJobs(c *fiber.Ctx) error {
	jobs, err := h.jobs.List(c.UserContext(), service.JobListFilter{
		Search:     c.Query("search"),
		ActiveOnly: c.QueryBool("active", false),
		Limit:      parseInt(c.Query("limit"), defaultPageSize),
		Offset:     parseOffset(c.Query("offset")),
	})
	if err != nil {
		return err
	}
	now := time.Now()
	resp := make([]dto.JobResponse, 0, len(jobs))
	for i := range jobs {
		resp = append(resp, dto.NewJobResponse(&jobs[i], now))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// GetJob handles GET /jobs/:id.
func (h *JobsHandler) GetJob(c *fiber.Ctx) error {
	job, err := h.jobs.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewJobResponse(job, time.Now())})
}

// CreateJob handles POST /jobs.
func (h *JobsHandler) CreateJob(c *fiber.Ctx) error {
	var req dto.CreateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	job, err := h.jobs.Create(c.UserContext(), auth.IdentityFromContext(c), service.JobCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Deadline:    req.Deadline,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewJobResponse(job, time.Now())})
}

// DeleteJob handles DELETE /jobs/:id.
func (h *JobsHandler) DeleteJob(c *fiber.Ctx) error {
	if err := h.jobs.Delete(c.UserContext(), auth.IdentityFromContext(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// JobDetails handles GET /jobs/:id/details.
func (h *JobsHandler) JobDetails(c *fiber.Ctx) error {
	detail, err := h.jobs.Detail(c.UserContext(), auth.IdentityFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": jobDetail(detail, time.Now())})
}

// DownloadCVs handles GET /jobs/:id/cvs/download and streams a zip. Every
// check happens while planning; once the body starts, a failed write can only
// truncate the archive and is logged by the service.
func (h *JobsHandler) DownloadCVs(c *fiber.Ctx) error {
	plan, err := h.cvs.PlanArchive(c.UserContext(), auth.IdentityFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	c.Attachment(plan.Name)
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		if _, err := h.cvs.WriteArchive(w, plan); err != nil {
			return
		}
		_ = w.Flush()
	})
	return nil
}

// JobReport handles GET /jobs/:id/report.pdf.
func (h *JobsHandler) JobReport(c *fiber.Ctx) error {
	report, err := h.reports.JobReport(c.UserContext(), auth.IdentityFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	c.Attachment(report.Filename)
	c.Set(fiber.HeaderContentType, "application/pdf")
	return c.Send(report.Content)
}

func jobDetail(detail *service.JobWithApplications, now time.Time) dto.JobDetailResponse {
	apps := make([]dto.ApplicationResponse, 0, len(detail.Applications))
	for i := range detail.Applications {
		apps = append(apps, dto.NewApplicationDetailResponse(&detail.Applications[i], true))
	}
	return dto.JobDetailResponse{
		JobResponse:  dto.NewJobResponse(&detail.Job, now),
		Applications: apps,
	}
}

func statusCounts(counts map[domain.ApplicationStatus]int) fiber.Map {
	out := fiber.Map{}
	for _, status := range domain.ApplicationStatuses {
		out[string(status)] = counts[status]
	}
	return out
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseOffset(val string) int {
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}
