package domain

import "time"

// ApplicationStatus enumerates lifecycle states for an application.
type ApplicationStatus string

const (
	ApplicationStatusSubmitted   ApplicationStatus = "submitted"
	ApplicationStatusShortlisted ApplicationStatus = "shortlisted"
	ApplicationStatusRejected    ApplicationStatus = "rejected"
	ApplicationStatusWithdrawn   ApplicationStatus = "withdrawn"
)

// ApplicationStatuses lists all states in lifecycle order.
var ApplicationStatuses = []ApplicationStatus{
	ApplicationStatusSubmitted,
	ApplicationStatusShortlisted,
	ApplicationStatusRejected,
	ApplicationStatusWithdrawn,
}

// Score bounds.
const (
	MinScore = 1
	MaxScore = 5
)

// Valid reports whether s is a known status.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusSubmitted, ApplicationStatusShortlisted, ApplicationStatusRejected, ApplicationStatusWithdrawn:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationStatusRejected || s == ApplicationStatusWithdrawn
}

// Application links an applicant to a job.
type Application struct {
	ID          string
	UserID      string
	JobID       string
	Status      ApplicationStatus
	Score       *int
	CoverLetter *string
	Notes       *string
	CVFilename  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasCV reports whether a stored CV is referenced.
func (a *Application) HasCV() bool {
	return a.CVFilename != nil && *a.CVFilename != ""
}

// Clone returns a deep copy, used to restore state when persisting fails.
func (a *Application) Clone() *Application {
	cp := *a
	if a.Score != nil {
		v := *a.Score
		cp.Score = &v
	}
	if a.CoverLetter != nil {
		v := *a.CoverLetter
		cp.CoverLetter = &v
	}
	if a.Notes != nil {
		v := *a.Notes
		cp.Notes = &v
	}
	if a.CVFilename != nil {
		v := *a.CVFilename
		cp.CVFilename = &v
	}
	return &cp
}

// ApplicationDetail is an application joined with its applicant and job.
type ApplicationDetail struct {
	Application
	Applicant User
	Job       Job
}
