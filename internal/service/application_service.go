package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/job-board/internal/auth"
	"github.com/spec-kit/job-board/internal/domain"
	"github.com/spec-kit/job-board/internal/events"
	"github.com/spec-kit/job-board/internal/repository"
	"github.com/spec-kit/job-board/internal/storage"
	apperrors "github.com/spec-kit/job-board/pkg/util/errorutil"
)

// MaxNotesLength bounds recruiter notes.
const MaxNotesLength = 10000

// LifecycleRecorder receives lifecycle counters. It may be nil.
type LifecycleRecorder interface {
	RecordTransition(from, to string)
	RecordUpload(outcome string)
}

// ApplicationService is the application lifecycle manager.
type ApplicationService struct {
	applications    repository.ApplicationRepository
	jobs            repository.JobRepository
	cvs             *storage.CVStore
	dispatcher      events.Dispatcher
	recorder        LifecycleRecorder
	logger          *zap.Logger
	enforceDeadline bool
	now             func() time.Time
}

// ApplicationDependencies bundles collaborators for the lifecycle manager.
type ApplicationDependencies struct {
	ApplicationRepo repository.ApplicationRepository
	JobRepo         repository.JobRepository
	CVStore         *storage.CVStore
	Dispatcher      events.Dispatcher
	Recorder        LifecycleRecorder
	Logger          *zap.Logger
	EnforceDeadline bool
}

// NewApplicationService constructs the service.
func NewApplicationService(deps ApplicationDependencies) *ApplicationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{
		applications:    deps.ApplicationRepo,
		jobs:            deps.JobRepo,
		cvs:             deps.CVStore,
		dispatcher:      deps.Dispatcher,
		recorder:        deps.Recorder,
		logger:          logger,
		enforceDeadline: deps.EnforceDeadline,
		now:             time.Now,
	}
}

// CVUpload is an uploaded document as received from the client.
type CVUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// BulkResult reports a bulk status change per application.
type BulkResult struct {
	Updated []string
	Failed  map[string]*apperrors.DomainError
}

// Reviewers move applications forward; only the applicant may withdraw.
var allowedTransitions = map[domain.ApplicationStatus][]domain.ApplicationStatus{
	domain.ApplicationStatusSubmitted:   {domain.ApplicationStatusShortlisted, domain.ApplicationStatusRejected},
	domain.ApplicationStatusShortlisted: {domain.ApplicationStatusRejected},
	domain.ApplicationStatusRejected:    {},
	domain.ApplicationStatusWithdrawn:   {},
}

func isValidTransition(current, next domain.ApplicationStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Submit files an application for the actor. The CV, when present, is
// validated before anything is written and removed again if the record
// cannot be stored.
func (s *ApplicationService) Submit(ctx context.Context, actor *domain.User, jobID, coverLetter string, cv *CVUpload) (*domain.Application, error) {
	if err := auth.Authorize(actor, auth.RequireApplicant).Err(); err != nil {
		return nil, err
	}
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, lookupError(err, "job")
	}
	if s.enforceDeadline && !job.Open(s.now()) {
		return nil, apperrors.NewConflict(apperrors.CodeDeadlinePassed, "the application deadline has passed",
			map[string]any{"deadline": job.Deadline.Format(domain.DeadlineLayout)})
	}

	if _, err := s.applications.GetByUserAndJob(ctx, actor.ID, job.ID); err == nil {
		return nil, apperrors.NewConflict(apperrors.CodeDuplicateApplication, "you have already applied to this job", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	if cv != nil {
		if _, err := s.cvs.Validate(cv.Filename, cv.Size); err != nil {
			s.recordUpload("rejected")
			return nil, err
		}
	}

	app := &domain.Application{
		UserID:      actor.ID,
		JobID:       job.ID,
		Status:      domain.ApplicationStatusSubmitted,
		CoverLetter: stringPtr(strings.TrimSpace(coverLetter)),
	}

	if cv != nil {
		name, err := s.cvs.Store(actor.ID, cv.Filename, cv.Size, cv.Content)
		if err != nil {
			s.recordUpload("failed")
			var domainErr *apperrors.DomainError
			if errors.As(err, &domainErr) {
				return nil, err
			}
			return nil, apperrors.NewInternalError(err)
		}
		app.CVFilename = &name
	}

	if err := s.applications.Create(ctx, app); err != nil {
		if app.HasCV() {
			s.cvs.Remove(*app.CVFilename)
		}
		s.logger.Warn("application insert failed", zap.String("job_id", job.ID), zap.Error(err))
		return nil, writeError(err, "application")
	}
	if app.HasCV() {
		s.recordUpload("stored")
	}

	s.publishEvent(ctx, events.Event{
		Type:          events.EventApplicationSubmitted,
		ApplicationID: app.ID,
		JobID:         job.ID,
		Actor:         events.ActorFrom(actor),
		Payload: events.ApplicationSubmittedPayload{
			ApplicantID:    actor.ID,
			ApplicantEmail: actor.Email,
			ApplicantName:  actor.FullName(),
			JobTitle:       job.Title,
			HasCV:          app.HasCV(),
		},
	})
	return app, nil
}

// Transition moves an application to a reviewer-chosen status.
func (s *ApplicationService) Transition(ctx context.Context, actor *domain.User, id, status string) (*domain.Application, error) {
	if err := auth.Authorize(actor, auth.RequireRecruiterOrAdmin).Err(); err != nil {
		return nil, err
	}
	target, err := parseStatus(status)
	if err != nil {
		return nil, err
	}

	detail, err := s.applications.GetDetail(ctx, id)
	if err != nil {
		return nil, lookupError(err, "application")
	}
	if err := auth.AuthorizeOwner(actor, detail.Job.CreatedBy).Err(); err != nil {
		return nil, err
	}

	app := &detail.Application
	from := app.Status
	if from.Terminal() {
		return nil, apperrors.NewTerminalState(string(from))
	}
	if !isValidTransition(from, target) {
		return nil, apperrors.NewInvalidStatus(string(target), map[string]any{"from": from, "to": target})
	}

	if err := s.commit(ctx, app, func(a *domain.Application) { a.Status = target }, s.statusWriter(from)); err != nil {
		return nil, err
	}
	s.afterStatusChange(ctx, actor, detail, from, events.EventApplicationStatusChanged)
	return app, nil
}

// BulkTransition applies Transition to each id and reports per-id failures.
func (s *ApplicationService) BulkTransition(ctx context.Context, actor *domain.User, ids []string, status string) (*BulkResult, error) {
	if err := auth.Authorize(actor, auth.RequireRecruiterOrAdmin).Err(); err != nil {
		return nil, err
	}
	if _, err := parseStatus(status); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, apperrors.NewValidationError("application_ids required", nil)
	}

	result := &BulkResult{Failed: map[string]*apperrors.DomainError{}}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, err := s.Transition(ctx, actor, id, status); err != nil {
			result.Failed[id] = apperrors.ToDomainError(err)
			continue
		}
		result.Updated = append(result.Updated, id)
	}
	return result, nil
}

// Withdraw lets the applicant pull a live application.
func (s *ApplicationService) Withdraw(ctx context.Context, actor *domain.User, id string) (*domain.Application, error) {
	if err := auth.Authorize(actor, auth.RequireApplicant).Err(); err != nil {
		return nil, err
	}
	detail, err := s.applications.GetDetail(ctx, id)
	if err != nil {
		return nil, lookupError(err, "application")
	}
	if detail.UserID != actor.ID {
		return nil, apperrors.NewNotOwner("only the applicant can withdraw this application")
	}

	app := &detail.Application
	from := app.Status
	if from.Terminal() {
		return nil, apperrors.NewTerminalState(string(from))
	}
	if err := s.commit(ctx, app, func(a *domain.Application) { a.Status = domain.ApplicationStatusWithdrawn }, s.statusWriter(from)); err != nil {
		return nil, err
	}
	s.afterStatusChange(ctx, actor, detail, from, events.EventApplicationWithdrawn)
	return app, nil
}

// SetScore rates an application. Only the recruiter who owns the job may score.
func (s *ApplicationService) SetScore(ctx context.Context, actor *domain.User, id string, value int) (*domain.Application, error) {
	if err := auth.Authorize(actor, auth.RequireRecruiterOrAdmin).Err(); err != nil {
		return nil, err
	}
	if value < domain.MinScore || value > domain.MaxScore {
		return nil, apperrors.NewScoreOutOfRange(domain.MinScore, domain.MaxScore)
	}
	detail, err := s.applications.GetDetail(ctx, id)
	if err != nil {
		return nil, lookupError(err, "application")
	}
	if detail.Job.CreatedBy != actor.ID {
		return nil, apperrors.NewNotOwner("only the recruiter who posted this job can score applications")
	}

	app := &detail.Application
	if err := s.commit(ctx, app, func(a *domain.Application) { a.Score = &value }, s.applications.UpdateScore); err != nil {
		return nil, err
	}
	return app, nil
}

// SaveNotes stores reviewer notes; an empty string clears them.
func (s *ApplicationService) SaveNotes(ctx context.Context, actor *domain.User, id, notes string) (*domain.Application, error) {
	if err := auth.Authorize(actor, auth.RequireRecruiterOrAdmin).Err(); err != nil {
		return nil, err
	}
	notes = strings.TrimSpace(notes)
	if len(notes) > MaxNotesLength {
		return nil, apperrors.NewValidationError("notes too long", map[string]any{"max_length": MaxNotesLength})
	}
	detail, err := s.applications.GetDetail(ctx, id)
	if err != nil {
		return nil, lookupError(err, "application")
	}
	if err := auth.AuthorizeOwner(actor, detail.Job.CreatedBy).Err(); err != nil {
		return nil, err
	}

	app := &detail.Application
	if err := s.commit(ctx, app, func(a *domain.Application) { a.Notes = stringPtr(notes) }, s.applications.UpdateNotes); err != nil {
		return nil, err
	}
	return app, nil
}

// Get returns an application to its applicant, the job's recruiter or an admin.
func (s *ApplicationService) Get(ctx context.Context, actor *domain.User, id string) (*domain.ApplicationDetail, error) {
	if err := auth.Authorize(actor, auth.RequireAuthenticated).Err(); err != nil {
		return nil, err
	}
	detail, err := s.applications.GetDetail(ctx, id)
	if err != nil {
		return nil, lookupError(err, "application")
	}
	if err := auth.AuthorizeOwner(actor, detail.UserID, detail.Job.CreatedBy).Err(); err != nil {
		return nil, err
	}
	return detail, nil
}

// ListMine returns the actor's applications, newest first.
func (s *ApplicationService) ListMine(ctx context.Context, actor *domain.User) ([]domain.ApplicationDetail, error) {
	if err := auth.Authorize(actor, auth.RequireApplicant).Err(); err != nil {
		return nil, err
	}
	apps, err := s.applications.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return apps, nil
}

// Delete removes an application and then its CV. A CV left behind by a
// failed removal is picked up by reconcile.
func (s *ApplicationService) Delete(ctx context.Context, actor *domain.User, id string) error {
	if err := auth.Authorize(actor, auth.RequireAdmin).Err(); err != nil {
		return err
	}
	app, err := s.applications.GetByID(ctx, id)
	if err != nil {
		return lookupError(err, "application")
	}
	if err := s.applications.Delete(ctx, app.ID); err != nil {
		return writeError(err, "application")
	}
	if app.HasCV() && !s.cvs.Remove(*app.CVFilename) {
		s.logger.Warn("cv left behind after application delete",
			zap.String("application_id", app.ID), zap.String("file", *app.CVFilename))
	}
	s.logger.Info("application deleted", zap.String("application_id", app.ID), zap.String("actor_id", actor.ID))
	return nil
}

// commit applies mutate, persists it in one statement with write and
// restores the previous state when persisting fails.
func (s *ApplicationService) commit(ctx context.Context, app *domain.Application, mutate func(*domain.Application),
	write func(context.Context, *domain.Application) error) error {
	snapshot := app.Clone()
	mutate(app)
	if err := write(ctx, app); err != nil {
		*app = *snapshot
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return apperrors.NewNotFound("application", nil)
		case errors.Is(err, repository.ErrStatusChanged):
			return s.statusChanged(ctx, app.ID)
		}
		s.logger.Error("application update failed", zap.String("application_id", app.ID), zap.Error(err))
		return apperrors.NewPersistenceError(err)
	}
	return nil
}

// statusWriter persists a status change only if the stored status is still from.
func (s *ApplicationService) statusWriter(from domain.ApplicationStatus) func(context.Context, *domain.Application) error {
	return func(ctx context.Context, app *domain.Application) error {
		return s.applications.UpdateStatus(ctx, app, from)
	}
}

// statusChanged describes the status another request committed first.
func (s *ApplicationService) statusChanged(ctx context.Context, id string) error {
	current, err := s.applications.GetByID(ctx, id)
	if err != nil {
		return lookupError(err, "application")
	}
	if current.Status.Terminal() {
		return apperrors.NewTerminalState(string(current.Status))
	}
	return apperrors.NewConflict(apperrors.CodeInvalidStatus, "application status was changed by another request",
		map[string]any{"status": current.Status})
}

func (s *ApplicationService) afterStatusChange(ctx context.Context, actor *domain.User, detail *domain.ApplicationDetail, from domain.ApplicationStatus, eventType events.EventType) {
	if s.recorder != nil {
		s.recorder.RecordTransition(string(from), string(detail.Status))
	}
	s.publishEvent(ctx, events.Event{
		Type:          eventType,
		ApplicationID: detail.ID,
		JobID:         detail.JobID,
		Actor:         events.ActorFrom(actor),
		Payload: events.ApplicationStatusChangedPayload{
			ApplicantID:    detail.Applicant.ID,
			ApplicantEmail: detail.Applicant.Email,
			ApplicantName:  detail.Applicant.FullName(),
			JobTitle:       detail.Job.Title,
			OldStatus:      from,
			NewStatus:      detail.Status,
		},
	})
}

func (s *ApplicationService) recordUpload(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordUpload(outcome)
	}
}

func (s *ApplicationService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func parseStatus(status string) (domain.ApplicationStatus, error) {
	target := domain.ApplicationStatus(strings.ToLower(strings.TrimSpace(status)))
	if !target.Valid() {
		return "", apperrors.NewInvalidStatus(status, map[string]any{"allowed": domain.ApplicationStatuses})
	}
	return target, nil
}
