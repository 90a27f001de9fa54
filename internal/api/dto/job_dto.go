package dto

import (
	"time"

	"github.com/spec-kit/job-board/internal/domain"
)

// CreateJobRequest payload. Deadline uses YYYY-MM-DD.
type CreateJobRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
}

// JobResponse is the public view of a posting.
type JobResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Deadline    string    `json:"deadline"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	Open        bool      `json:"open"`
}

// JobDetailResponse is a job with its ranked applications.
type JobDetailResponse struct {
	JobResponse
	Applications []ApplicationResponse `json:"applications"`
}

// JobSummaryResponse is a job with its application count.
type JobSummaryResponse struct {
	JobResponse
	ApplicationCount int `json:"application_count"`
}

// NewJobResponse maps a domain job; now decides whether it is still open.
func NewJobResponse(j *domain.Job, now time.Time) JobResponse {
	return JobResponse{
		ID:          j.ID,
		Title:       j.Title,
		Description: j.Description,
		Deadline:    j.Deadline.Format(domain.DeadlineLayout),
		CreatedBy:   j.CreatedBy,
		CreatedAt:   j.CreatedAt,
		Open:        j.Open(now),
	}
}
