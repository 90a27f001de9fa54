package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/job-board/internal/api/dto"
	"github.com/spec-kit/job-board/internal/auth"
	"github.com/spec-kit/job-board/internal/service"
)

// RecruiterHandler serves the recruiter dashboard.
type RecruiterHandler struct {
	jobs *service.JobService
}

// NewRecruiterHandler constructs handler.
func NewRecruiterHandler(jobs *service.JobService) *RecruiterHandler {
	return &RecruiterHandler{jobs: jobs}
}

// ListJobs handles GET /recruiter/jobs.
func (h *RecruiterHandler) ListJobs(c *fiber.Ctx) error {
	jobs, err := h.jobs.ListForRecruiter(c.UserContext(), auth.IdentityFromContext(c))
	if err != nil {
		return err
	}
	now := time.Now()
	resp := make([]dto.JobDetailResponse, 0, len(jobs))
	for i := range jobs {
		resp = append(resp, jobDetail(&jobs[i], now))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Stats handles GET /recruiter/stats.
func (h *RecruiterHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.jobs.RecruiterStats(c.UserContext(), auth.IdentityFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"total_jobs":             stats.TotalJobs,
		"active_jobs":            stats.ActiveJobs,
		"expired_jobs":           stats.ExpiredJobs,
		"total_applications":     stats.TotalApplications,
		"applications_by_status": statusCounts(stats.ApplicationsByStatus),
	}})
}
