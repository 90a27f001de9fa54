package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"
	"go.uber.org/zap"

	"github.com/spec-kit/job-board/internal/auth"
	"github.com/spec-kit/job-board/internal/domain"
	"github.com/spec-kit/job-board/internal/repository"
	"github.com/spec-kit/job-board/internal/storage"
	apperrors "github.com/spec-kit/job-board/pkg/util/errorutil"
)

// ReportService renders printable summaries of a job's applicants.
type ReportService struct {
	jobs         repository.JobRepository
	applications repository.ApplicationRepository
	logger       *zap.Logger
	now          func() time.Time
}

// NewReportService constructs the service.
func NewReportService(jobs repository.JobRepository, applications repository.ApplicationRepository, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{jobs: jobs, applications: applications, logger: logger, now: time.Now}
}

// Report is a rendered document.
type Report struct {
	Filename string
	Content  []byte
}

// JobReport renders a PDF listing the applicants of a job, ranked by score.
func (s *ReportService) JobReport(ctx context.Context, actor *domain.User, jobID string) (*Report, error) {
	if err := auth.Authorize(actor, auth.RequireRecruiterOrAdmin).Err(); err != nil {
		return nil, err
	}
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, lookupError(err, "job")
	}
	if err := auth.AuthorizeOwner(actor, job.CreatedBy).Err(); err != nil {
		return nil, err
	}
	apps, err := s.applications.ListByJob(ctx, job.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	content, err := buildJobReportPDF(job, apps, s.now())
	if err != nil {
		s.logger.Error("job report render failed", zap.String("job_id", job.ID), zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	return &Report{
		Filename: fmt.Sprintf("Report_%s_%s.pdf", storage.SafeName(job.Title), s.now().Format("20060102")),
		Content:  content,
	}, nil
}

func buildJobReportPDF(job *domain.Job, apps []domain.ApplicationDetail, generated time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Applicants: "+job.Title, true)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr(job.Title))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, "Deadline: "+job.Deadline.Format(domain.DeadlineLayout))
	pdf.Ln(6)
	pdf.Cell(0, 6, "Generated: "+generated.UTC().Format("2006-01-02 15:04 MST"))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Applications: %d", len(apps)))
	pdf.Ln(10)

	widths := []float64{60, 60, 25, 15, 20}
	header := []string{"Applicant", "Email", "Status", "Score", "Applied"}
	writeHeader := func() {
		pdf.SetFont("Helvetica", "B", 10)
		for i, h := range header {
			pdf.CellFormat(widths[i], 7, h, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 10)
	}
	writeHeader()

	for _, app := range apps {
		if pdf.GetY() > 270 {
			pdf.AddPage()
			writeHeader()
		}
		score := "-"
		if app.Score != nil {
			score = fmt.Sprintf("%d", *app.Score)
		}
		row := []string{
			tr(app.Applicant.FullName()),
			tr(app.Applicant.Email),
			string(app.Status),
			score,
			app.CreatedAt.Format("2006-01-02"),
		}
		for i, v := range row {
			pdf.CellFormat(widths[i], 7, v, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
