package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/job-board/internal/auth"
	"github.com/spec-kit/job-board/internal/config"
	"github.com/spec-kit/job-board/internal/domain"
	"github.com/spec-kit/job-board/internal/persistence"
	"github.com/spec-kit/job-board/internal/repository"
	apperrors "github.com/spec-kit/job-board/pkg/util/errorutil"
)

// MinPasswordLength is enforced on registration, change and reset.
const MinPasswordLength = 8

// ResetTokenStore keeps single-use password reset tokens.
type ResetTokenStore interface {
	Save(ctx context.Context, token, userID string, ttl time.Duration) error
	Consume(ctx context.Context, token string) (string, error)
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	resets     ResetTokenStore
	tokenMgr   *auth.TokenManager
	bcryptCost int
	resetTTL   time.Duration
	mail       EmailQueue
	logger     *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	ResetStore ResetTokenStore
	Mail       EmailQueue
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		resets:     deps.ResetStore,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL()),
		bcryptCost: cfg.Auth.BcryptCost,
		resetTTL:   time.Duration(cfg.Auth.PasswordResetTTLMinutes) * time.Minute,
		mail:       deps.Mail,
		logger:     logger,
	}
}

// RegisterInput describes a new applicant account.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Password  string
}

// Session is a freshly issued credential.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// Register creates an applicant account and signs it in. Self-registration
// always yields the applicant role.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	user := &domain.User{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     normalizeEmail(in.Email),
		Phone:     stringPtr(strings.TrimSpace(in.Phone)),
		Role:      domain.RoleApplicant,
		IsActive:  true,
	}
	if user.FirstName == "" || user.LastName == "" {
		return nil, apperrors.NewValidationError("first_name and last_name required", nil)
	}
	if err := validateEmail(user.Email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, user.Email); err == nil {
		return nil, apperrors.NewConflict(apperrors.CodeDuplicateEmail, "email already registered", map[string]any{"field": "email"})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash

	// The unique constraint is authoritative when two registrations race.
	if err := s.users.Create(ctx, user); err != nil {
		return nil, writeError(err, "user")
	}
	return s.issue(user)
}

// EnsureAdmin creates an administrator account when no account uses email.
// An existing account is left untouched. It reports whether one was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return false, err
	}
	if err := validatePassword(password); err != nil {
		return false, err
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, apperrors.NewInternalError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return false, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		FirstName:    "Site",
		LastName:     "Administrator",
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return false, writeError(err, "user")
	}
	s.logger.Info("bootstrap admin created", zap.String("user_id", user.ID))
	return true, nil
}

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInvalidCredentials()
		}
		return nil, apperrors.NewInternalError(err)
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, apperrors.NewInvalidCredentials()
	}
	if !user.IsActive {
		return nil, apperrors.NewAccountInactive()
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *domain.User) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}

// ChangePassword verifies the current password before storing the new hash.
func (s *AuthService) ChangePassword(ctx context.Context, actor *domain.User, currentPassword, newPassword string) error {
	if err := auth.Authorize(actor, auth.RequireAuthenticated).Err(); err != nil {
		return err
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return lookupError(err, "user")
	}
	if !auth.VerifyPassword(user.PasswordHash, currentPassword) {
		return apperrors.NewInvalidCredentials()
	}
	return s.setPassword(ctx, user, newPassword)
}

// RequestPasswordReset issues a reset token for an active account and mails
// it to the account's address. Unknown or inactive emails get an empty token
// and no error so callers cannot probe which addresses exist.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", apperrors.NewInternalError(err)
	}
	if !user.IsActive {
		return "", nil
	}

	token := uuid.NewString()
	if err := s.resets.Save(ctx, token, user.ID, s.resetTTL); err != nil {
		return "", apperrors.NewInternalError(err)
	}
	s.logger.Info("password reset requested", zap.String("user_id", user.ID))
	if s.mail != nil && !s.mail.Enqueue(Email{
		To:      user.Email,
		Subject: "Password reset",
		HTMLBody: renderEmail(user.FullName(), fmt.Sprintf(
			"Use this code to reset your password: <b>%s</b>. It expires in %d minutes.",
			token, int(s.resetTTL.Minutes()))),
	}) {
		s.logger.Warn("notification queue full, dropping reset email", zap.String("user_id", user.ID))
	}
	return token, nil
}

// ConfirmPasswordReset consumes the token and sets a new password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(token) == "" {
		return apperrors.NewValidationError("token required", nil)
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	userID, err := s.resets.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, persistence.ErrResetTokenNotFound) {
			return apperrors.NewValidationError("reset token invalid or expired", nil)
		}
		return apperrors.NewInternalError(err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return lookupError(err, "user")
	}
	return s.setPassword(ctx, user, newPassword)
}

func (s *AuthService) setPassword(ctx context.Context, user *domain.User, password string) error {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return writeError(err, "user")
	}
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return apperrors.NewValidationError("email required", map[string]any{"field": "email"})
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperrors.NewValidationError("invalid email address", map[string]any{"field": "email"})
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperrors.NewValidationError("password too short", map[string]any{"min_length": MinPasswordLength})
	}
	return nil
}
