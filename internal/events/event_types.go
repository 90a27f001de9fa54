package events

import (
	"time"

	"github.com/spec-kit/job-board/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventApplicationSubmitted     EventType = "application_submitted"
	EventApplicationStatusChanged EventType = "application_status_changed"
	EventApplicationWithdrawn     EventType = "application_withdrawn"
	EventJobCreated               EventType = "job_created"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// ActorFrom builds event actor metadata from a user.
func ActorFrom(user *domain.User) Actor {
	if user == nil {
		return Actor{}
	}
	return Actor{UserID: user.ID, Role: user.Role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID            string      `json:"id"`
	Type          EventType   `json:"type"`
	ApplicationID string      `json:"application_id,omitempty"`
	JobID         string      `json:"job_id,omitempty"`
	Actor         Actor       `json:"actor"`
	Timestamp     time.Time   `json:"timestamp"`
	Payload       interface{} `json:"payload"`
}

// ApplicationSubmittedPayload payload.
type ApplicationSubmittedPayload struct {
	ApplicantID    string `json:"applicant_id"`
	ApplicantEmail string `json:"applicant_email"`
	ApplicantName  string `json:"applicant_name"`
	JobTitle       string `json:"job_title"`
	HasCV          bool   `json:"has_cv"`
}

// ApplicationStatusChangedPayload payload.
type ApplicationStatusChangedPayload struct {
	ApplicantID    string                   `json:"applicant_id"`
	ApplicantEmail string                   `json:"applicant_email"`
	ApplicantName  string                   `json:"applicant_name"`
	JobTitle       string                   `json:"job_title"`
	OldStatus      domain.ApplicationStatus `json:"old_status"`
	NewStatus      domain.ApplicationStatus `json:"new_status"`
}

// JobCreatedPayload payload.
type JobCreatedPayload struct {
	Title    string `json:"title"`
	Deadline string `json:"deadline"`
}
