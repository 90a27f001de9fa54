package domain

import "time"

// DeadlineLayout is the wire format of job deadlines.
const DeadlineLayout = "2006-01-02"

// Job is a posting created by a recruiter or admin.
type Job struct {
	ID          string
	Title       string
	Description string
	Deadline    time.Time
	CreatedBy   string
	CreatedAt   time.Time
}

// Open reports whether the job still accepts applications on the given day.
// The deadline day itself is still open.
func (j *Job) Open(now time.Time) bool {
	return !truncateDay(now).After(truncateDay(j.Deadline))
}

// OwnedBy reports whether userID created the job.
func (j *Job) OwnedBy(userID string) bool {
	return j != nil && j.CreatedBy == userID
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
