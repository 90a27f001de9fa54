package dto

import (
	"time"

	"github.com/spec-kit/job-board/internal/domain"
)

// StatusRequest asks for a status change.
type StatusRequest struct {
	Status string `json:"status"`
}

// BulkStatusRequest changes several applications at once.
type BulkStatusRequest struct {
	ApplicationIDs []string `json:"application_ids"`
	Status         string   `json:"status"`
}

// ScoreRequest rates an application.
type ScoreRequest struct {
	Score *int `json:"score"`
}

// NotesRequest stores reviewer notes.
type NotesRequest struct {
	Notes string `json:"notes"`
}

// ApplicantSummary identifies who applied.
type ApplicantSummary struct {
	ID        string  `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     string  `json:"email"`
	Phone     *string `json:"phone"`
}

// JobRef identifies the job applied to.
type JobRef struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Deadline string `json:"deadline"`
}

// ApplicationResponse is an application as seen by the caller.
type ApplicationResponse struct {
	ID          string                   `json:"id"`
	UserID      string                   `json:"user_id"`
	JobID       string                   `json:"job_id"`
	Status      domain.ApplicationStatus `json:"status"`
	Score       *int                     `json:"score"`
	CoverLetter *string                  `json:"cover_letter"`
	Notes       *string                  `json:"notes,omitempty"`
	HasCV       bool                     `json:"has_cv"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
	Applicant   *ApplicantSummary        `json:"applicant,omitempty"`
	Job         *JobRef                  `json:"job,omitempty"`
}

// BulkStatusResponse reports per-id outcomes.
type BulkStatusResponse struct {
	Updated []string                 `json:"updated"`
	Failed  map[string]ErrorResponse `json:"failed"`
}

// ErrorResponse mirrors the error envelope body.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// NewApplicationResponse maps an application. Reviewer notes are included
// only when withNotes is set.
func NewApplicationResponse(a *domain.Application, withNotes bool) ApplicationResponse {
	resp := ApplicationResponse{
		ID:          a.ID,
		UserID:      a.UserID,
		JobID:       a.JobID,
		Status:      a.Status,
		Score:       a.Score,
		CoverLetter: a.CoverLetter,
		HasCV:       a.HasCV(),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
	if withNotes {
		resp.Notes = a.Notes
	}
	return resp
}

// NewApplicationDetailResponse maps an application with applicant and job.
func NewApplicationDetailResponse(d *domain.ApplicationDetail, withNotes bool) ApplicationResponse {
	resp := NewApplicationResponse(&d.Application, withNotes)
	resp.Applicant = &ApplicantSummary{
		ID:        d.Applicant.ID,
		FirstName: d.Applicant.FirstName,
		LastName:  d.Applicant.LastName,
		Email:     d.Applicant.Email,
		Phone:     d.Applicant.Phone,
	}
	resp.Job = &JobRef{
		ID:       d.Job.ID,
		Title:    d.Job.Title,
		Deadline: d.Job.Deadline.Format(domain.DeadlineLayout),
	}
	return resp
}
