package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/job-board/internal/auth"
	"github.com/spec-kit/job-board/internal/domain"
	"github.com/spec-kit/job-board/internal/repository"
	apperrors "github.com/spec-kit/job-board/pkg/util/errorutil"
)

// AdminService exposes account and board management for administrators.
type AdminService struct {
	users        repository.UserRepository
	jobs         repository.JobRepository
	applications repository.ApplicationRepository
	logger       *zap.Logger
	now          func() time.Time
}

// AdminDependencies bundles repositories for the admin service.
type AdminDependencies struct {
	UserRepo        repository.UserRepository
	JobRepo         repository.JobRepository
	ApplicationRepo repository.ApplicationRepository
	Logger          *zap.Logger
}

// NewAdminService constructs the service.
func NewAdminService(deps AdminDependencies) *AdminService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{
		users:        deps.UserRepo,
		jobs:         deps.JobRepo,
		applications: deps.ApplicationRepo,
		logger:       logger,
		now:          time.Now,
	}
}

// UserListFilter narrows the admin user listing.
type UserListFilter struct {
	Role   string
	Active *bool
	Search string
	Limit  int
	Offset int
}

// UserUpdateInput carries editable account fields.
type UserUpdateInput struct {
	FirstName string
	LastName  string
	Email     string
	Role      string
}

// JobSummary is a job with its application count.
type JobSummary struct {
	Job              domain.Job
	ApplicationCount int
}

// BoardStats aggregates counts across the board.
type BoardStats struct {
	TotalUsers           int
	ActiveUsers          int
	InactiveUsers        int
	UsersByRole          map[domain.Role]int
	TotalJobs            int
	ActiveJobs           int
	ExpiredJobs          int
	TotalApplications    int
	ApplicationsByStatus map[domain.ApplicationStatus]int
}

// ListUsers returns accounts matching filter, newest first.
func (s *AdminService) ListUsers(ctx context.Context, actor *domain.User, filter UserListFilter) ([]domain.User, int, error) {
	if err := auth.Authorize(actor, auth.RequireAdmin).Err(); err != nil {
		return nil, 0, err
	}
	repoFilter := repository.UserFilter{
		Active: filter.Active,
		Search: strings.TrimSpace(filter.Search),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	if filter.Role != "" {
		role := domain.Role(filter.Role)
		if !role.Valid() {
			return nil, 0, apperrors.NewValidationError("invalid role", map[string]any{"role": filter.Role})
		}
		repoFilter.Role = &role
	}

	users, err := s.users.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, apperrors.NewInternalError(err)
	}
	countFilter := repoFilter
	countFilter.Limit, countFilter.Offset = 0, 0
	total, err := s.users.Count(ctx, countFilter)
	if err != nil {
		return nil, 0, apperrors.NewInternalError(err)
	}
	return users, total, nil
}

// GetUser returns one account.
func (s *AdminService) GetUser(ctx context.Context, actor *domain.User, id string) (*domain.User, error) {
	if err := auth.Authorize(actor, auth.RequireAdmin).Err(); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "user")
	}
	return user, nil
}

// UpdateUser edits names, email and role of an account.
func (s *AdminService) UpdateUser(ctx context.Context, actor *domain.User, id string, in UserUpdateInput) (*domain.User, error) {
	if err := auth.Authorize(actor, auth.RequireAdmin).Err(); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "user")
	}

	first, last := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	if first == "" || last == "" {
		return nil, apperrors.NewValidationError("first_name and last_name required", nil)
	}
	email := normalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	role := domain.Role(strings.TrimSpace(in.Role))
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": in.Role})
	}
	if actor.ID == user.ID && role != domain.RoleAdmin {
		return nil, apperrors.NewSelfModification("cannot remove your own admin role")
	}

	user.FirstName, user.LastName, user.Email, user.Role = first, last, email, role
	if err := s.users.Update(ctx, user); err != nil {
		return nil, writeError(err, "user")
	}
	s.logger.Info("user updated", zap.String("user_id", user.ID), zap.String("actor_id", actor.ID))
	return user, nil
}

// ToggleUserStatus flips the active flag of another account.
func (s *AdminService) ToggleUserStatus(ctx context.Context, actor *domain.User, id string) (*domain.User, error) {
	if err := auth.AuthorizeAccountChange(actor, id, auth.AccountDeactivate); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "user")
	}
	user.IsActive = !user.IsActive
	if err := s.users.Update(ctx, user); err != nil {
		return nil, writeError(err, "user")
	}
	s.logger.Info("user status toggled",
		zap.String("user_id", user.ID),
		zap.Bool("active", user.IsActive),
		zap.String("actor_id", actor.ID))
	return user, nil
}

// DeleteUser removes an account that owns no applications or jobs.
func (s *AdminService) DeleteUser(ctx context.Context, actor *domain.User, id string) error {
	if err := auth.AuthorizeAccountChange(actor, id, auth.AccountDelete); err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return lookupError(err, "user")
	}

	apps, err := s.applications.Count(ctx, repository.ApplicationFilter{UserID: &user.ID})
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	jobs, err := s.jobs.Count(ctx, repository.JobFilter{CreatedBy: &user.ID})
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if apps > 0 || jobs > 0 {
		return apperrors.NewConflict(apperrors.CodeHasDependents, "cannot delete a user with applications or jobs",
			map[string]any{"applications": apps, "jobs": jobs})
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		return writeError(err, "user")
	}
	s.logger.Info("user deleted", zap.String("user_id", user.ID), zap.String("actor_id", actor.ID))
	return nil
}

// ListJobs returns every job with its application count.
func (s *AdminService) ListJobs(ctx context.Context, actor *domain.User) ([]JobSummary, error) {
	if err := auth.Authorize(actor, auth.RequireAdmin).Err(); err != nil {
		return nil, err
	}
	jobs, err := s.jobs.List(ctx, repository.JobFilter{})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	result := make([]JobSummary, 0, len(jobs))
	for _, job := range jobs {
		jobID := job.ID
		n, err := s.applications.Count(ctx, repository.ApplicationFilter{JobID: &jobID})
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		result = append(result, JobSummary{Job: job, ApplicationCount: n})
	}
	return result, nil
}

// ListApplications returns applications across the board, optionally by status.
func (s *AdminService) ListApplications(ctx context.Context, actor *domain.User, status string, limit, offset int) ([]domain.ApplicationDetail, error) {
	if err := auth.Authorize(actor, auth.RequireAdmin).Err(); err != nil {
		return nil, err
	}
	filter := repository.ApplicationFilter{Limit: limit, Offset: offset}
	if status != "" {
		st, err := parseStatus(status)
		if err != nil {
			return nil, err
		}
		filter.Status = &st
	}
	apps, err := s.applications.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return apps, nil
}

// Stats aggregates user, job and application counts.
func (s *AdminService) Stats(ctx context.Context, actor *domain.User) (*BoardStats, error) {
	if err := auth.Authorize(actor, auth.RequireAdmin).Err(); err != nil {
		return nil, err
	}
	stats := &BoardStats{}
	var err error

	if stats.UsersByRole, err = s.users.CountByRole(ctx); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if stats.TotalUsers, err = s.users.Count(ctx, repository.UserFilter{}); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	active := true
	if stats.ActiveUsers, err = s.users.Count(ctx, repository.UserFilter{Active: &active}); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	stats.InactiveUsers = stats.TotalUsers - stats.ActiveUsers

	y, m, d := s.now().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if stats.TotalJobs, err = s.jobs.Count(ctx, repository.JobFilter{}); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if stats.ActiveJobs, err = s.jobs.Count(ctx, repository.JobFilter{ActiveOn: &today}); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	stats.ExpiredJobs = stats.TotalJobs - stats.ActiveJobs

	if stats.ApplicationsByStatus, err = s.applications.CountByStatus(ctx, repository.ApplicationFilter{}); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	for _, n := range stats.ApplicationsByStatus {
		stats.TotalApplications += n
	}
	return stats, nil
}
