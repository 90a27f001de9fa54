package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/job-board/internal/auth"
	"github.com/spec-kit/job-board/internal/domain"
	"github.com/spec-kit/job-board/internal/events"
	"github.com/spec-kit/job-board/internal/repository"
	apperrors "github.com/spec-kit/job-board/pkg/util/errorutil"
)

// JobService coordinates job postings.
type JobService struct {
	jobs         repository.JobRepository
	applications repository.ApplicationRepository
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	now          func() time.Time
}

// JobDependencies bundles repositories for job service.
type JobDependencies struct {
	JobRepo         repository.JobRepository
	ApplicationRepo repository.ApplicationRepository
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
}

// NewJobService constructs the service.
func NewJobService(deps JobDependencies) *JobService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobService{
		jobs:         deps.JobRepo,
		applications: deps.ApplicationRepo,
		dispatcher:   deps.Dispatcher,
		logger:       logger,
		now:          time.Now,
	}
}

// JobCreateInput describes a new posting. Deadline uses YYYY-MM-DD.
type JobCreateInput struct {
	Title       string
	Description string
	Deadline    string
}

// JobListFilter describes public listing filters.
type JobListFilter struct {
	Search     string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// JobWithApplications is a job plus its applications ranked by score.
type JobWithApplications struct {
	Job          domain.Job
	Applications []domain.ApplicationDetail
}

// RecruiterStats summarizes a recruiter's postings.
type RecruiterStats struct {
	TotalJobs            int
	ActiveJobs           int
	ExpiredJobs          int
	TotalApplications    int
	ApplicationsByStatus map[domain.ApplicationStatus]int
}

// Create posts a job. The deadline must be strictly after today.
func (s *JobService) Create(ctx context.Context, actor *domain.User, in JobCreateInput) (*domain.Job, error) {
	if err := auth.Authorize(actor, auth.RequireRecruiterOrAdmin).Err(); err != nil {
		return nil, err
	}

	job := &domain.Job{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		CreatedBy:   actor.ID,
	}
	if job.Title == "" || job.Description == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}
	deadline, err := time.Parse(domain.DeadlineLayout, strings.TrimSpace(in.Deadline))
	if err != nil {
		return nil, apperrors.NewValidationError("deadline must be YYYY-MM-DD", map[string]any{"field": "deadline"})
	}
	today := s.today()
	if !deadline.After(today) {
		return nil, apperrors.NewValidationError("deadline must be in the future", map[string]any{"field": "deadline"})
	}
	job.Deadline = deadline

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, writeError(err, "job")
	}

	s.publishEvent(ctx, events.Event{
		Type:  events.EventJobCreated,
		JobID: job.ID,
		Actor: events.ActorFrom(actor),
		Payload: events.JobCreatedPayload{
			Title:    job.Title,
			Deadline: job.Deadline.Format(domain.DeadlineLayout),
		},
	})
	return job, nil
}

// List returns public postings, newest first.
func (s *JobService) List(ctx context.Context, filter JobListFilter) ([]domain.Job, error) {
	repoFilter := repository.JobFilter{
		Search: filter.Search,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	if filter.ActiveOnly {
		today := s.today()
		repoFilter.ActiveOn = &today
	}
	jobs, err := s.jobs.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return jobs, nil
}

// Get returns a single posting.
func (s *JobService) Get(ctx context.Context, id string) (*domain.Job, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "job")
	}
	return job, nil
}

// ListForRecruiter returns the actor's own jobs with their applications.
func (s *JobService) ListForRecruiter(ctx context.Context, actor *domain.User) ([]JobWithApplications, error) {
	if err := auth.Authorize(actor, auth.RequireRecruiterOrAdmin).Err(); err != nil {
		return nil, err
	}
	jobs, err := s.jobs.List(ctx, repository.JobFilter{CreatedBy: &actor.ID})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	result := make([]JobWithApplications, 0, len(jobs))
	for _, job := range jobs {
		apps, err := s.applications.ListByJob(ctx, job.ID)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		result = append(result, JobWithApplications{Job: job, Applications: apps})
	}
	return result, nil
}

// Detail returns a job with its applications for its owner or an admin.
func (s *JobService) Detail(ctx context.Context, actor *domain.User, id string) (*JobWithApplications, error) {
	job, err := s.ownedJob(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	apps, err := s.applications.ListByJob(ctx, job.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &JobWithApplications{Job: *job, Applications: apps}, nil
}

// Delete removes a job that has no applications.
func (s *JobService) Delete(ctx context.Context, actor *domain.User, id string) error {
	job, err := s.ownedJob(ctx, actor, id)
	if err != nil {
		return err
	}
	count, err := s.applications.Count(ctx, repository.ApplicationFilter{JobID: &job.ID})
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if count > 0 {
		return apperrors.NewConflict(apperrors.CodeHasDependents, "cannot delete a job that has applications",
			map[string]any{"applications": count})
	}
	if err := s.jobs.Delete(ctx, job.ID); err != nil {
		if errors.Is(err, repository.ErrReferenced) {
			return apperrors.NewConflict(apperrors.CodeHasDependents, "cannot delete a job that has applications", nil)
		}
		return writeError(err, "job")
	}
	s.logger.Info("job deleted", zap.String("job_id", job.ID), zap.String("actor_id", actor.ID))
	return nil
}

// RecruiterStats summarizes the actor's own postings.
func (s *JobService) RecruiterStats(ctx context.Context, actor *domain.User) (*RecruiterStats, error) {
	if err := auth.Authorize(actor, auth.RequireRecruiterOrAdmin).Err(); err != nil {
		return nil, err
	}
	today := s.today()
	owner := actor.ID

	stats := &RecruiterStats{}
	var err error
	if stats.TotalJobs, err = s.jobs.Count(ctx, repository.JobFilter{CreatedBy: &owner}); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if stats.ActiveJobs, err = s.jobs.Count(ctx, repository.JobFilter{CreatedBy: &owner, ActiveOn: &today}); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	stats.ExpiredJobs = stats.TotalJobs - stats.ActiveJobs

	byStatus, err := s.applications.CountByStatus(ctx, repository.ApplicationFilter{JobOwner: &owner})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	stats.ApplicationsByStatus = byStatus
	for _, n := range byStatus {
		stats.TotalApplications += n
	}
	return stats, nil
}

// ownedJob loads a job the actor may manage: its creator or any admin.
func (s *JobService) ownedJob(ctx context.Context, actor *domain.User, id string) (*domain.Job, error) {
	if err := auth.Authorize(actor, auth.RequireRecruiterOrAdmin).Err(); err != nil {
		return nil, err
	}
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "job")
	}
	if err := auth.AuthorizeOwner(actor, job.CreatedBy).Err(); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobService) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *JobService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
