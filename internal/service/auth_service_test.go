package service

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/job-board/internal/config"
	"github.com/spec-kit/job-board/internal/domain"
	"github.com/spec-kit/job-board/internal/persistence"
	"github.com/spec-kit/job-board/internal/repository"
	apperrors "github.com/spec-kit/job-board/pkg/util/errorutil"
)

func newAuthService(t *testing.T) (*AuthService, repository.Repositories, *recordingQueue) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repos := repository.NewMemoryRepositories()
	cfg := config.Config{Auth: config.AuthConfig{
		JWTSecret:               "test-secret",
		AccessTokenTTLMinutes:   30,
		PasswordResetTTLMinutes: 15,
		BcryptCost:              bcrypt.MinCost,
	}}
	queue := &recordingQueue{}
	svc := NewAuthService(cfg, AuthDependencies{
		UserRepo:   repos.Users,
		ResetStore: persistence.NewResetTokenStore(client),
		Mail:       queue,
	})
	return svc, repos, queue
}

func registerInput(email string) RegisterInput {
	return RegisterInput{FirstName: "Ana", LastName: "Applicant", Email: email, Password: "correct-horse"}
}

func TestRegister(t *testing.T) {
	svc, repos, _ := newAuthService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, registerInput("  Ana@Example.com "))
	require.NoError(t, err)
	assert.Equal(t, domain.RoleApplicant, session.User.Role)
	assert.Equal(t, "ana@example.com", session.User.Email)
	assert.NotEmpty(t, session.Token)
	assert.NotEqual(t, "correct-horse", session.User.PasswordHash)

	claims, err := svc.TokenManager().ParseToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", claims.Subject)
	assert.Equal(t, session.User.ID, claims.UserID)

	stored, err := repos.Users.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.True(t, stored.IsActive)

	_, err = svc.Register(ctx, registerInput("ANA@example.com"))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDuplicateEmail))
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	in := registerInput("not-an-email")
	_, err := svc.Register(ctx, in)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	in = registerInput("ana@example.com")
	in.Password = "short"
	_, err = svc.Register(ctx, in)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	in = registerInput("ana@example.com")
	in.FirstName = " "
	_, err = svc.Register(ctx, in)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestLogin(t *testing.T) {
	svc, repos, _ := newAuthService(t)
	ctx := context.Background()
	session, err := svc.Register(ctx, registerInput("ana@example.com"))
	require.NoError(t, err)

	got, err := svc.Login(ctx, "ANA@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, got.User.ID)

	_, err = svc.Login(ctx, "ana@example.com", "wrong-password")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidCredentials))

	_, err = svc.Login(ctx, "nobody@example.com", "correct-horse")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidCredentials))

	user, err := repos.Users.GetByID(ctx, session.User.ID)
	require.NoError(t, err)
	user.IsActive = false
	require.NoError(t, repos.Users.Update(ctx, user))

	_, err = svc.Login(ctx, "ana@example.com", "correct-horse")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAccountInactive))
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()
	session, err := svc.Register(ctx, registerInput("ana@example.com"))
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, session.User, "wrong-password", "new-password-1")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidCredentials))

	err = svc.ChangePassword(ctx, nil, "correct-horse", "new-password-1")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotAuthenticated))

	require.NoError(t, svc.ChangePassword(ctx, session.User, "correct-horse", "new-password-1"))
	_, err = svc.Login(ctx, "ana@example.com", "correct-horse")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidCredentials))
	_, err = svc.Login(ctx, "ana@example.com", "new-password-1")
	assert.NoError(t, err)
}

func TestPasswordReset(t *testing.T) {
	svc, _, queue := newAuthService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, registerInput("ana@example.com"))
	require.NoError(t, err)

	token, err := svc.RequestPasswordReset(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, token)

	assert.Empty(t, queue.sent())

	token, err = svc.RequestPasswordReset(ctx, "ana@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	sent := queue.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ana@example.com", sent[0].To)
	assert.Contains(t, sent[0].HTMLBody, token)

	require.NoError(t, svc.ConfirmPasswordReset(ctx, token, "reset-password-1"))
	_, err = svc.Login(ctx, "ana@example.com", "reset-password-1")
	assert.NoError(t, err)

	err = svc.ConfirmPasswordReset(ctx, token, "another-password")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	err = svc.ConfirmPasswordReset(ctx, "", "another-password")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestEnsureAdmin(t *testing.T) {
	svc, repos, _ := newAuthService(t)
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, "Root@Example.com", "admin-password")
	require.NoError(t, err)
	assert.True(t, created)

	admin, err := repos.Users.GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)

	created, err = svc.EnsureAdmin(ctx, "root@example.com", "other-password")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = svc.Login(ctx, "root@example.com", "admin-password")
	assert.NoError(t, err)

	_, err = svc.EnsureAdmin(ctx, "admin2@example.com", "short")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	svc, repos, _ := newAuthService(t)
	ctx := context.Background()

	const attempts = 6
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Register(ctx, registerInput("race@example.com"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperrors.IsCode(err, apperrors.CodeDuplicateEmail), err)
	}
	assert.Equal(t, 1, succeeded)

	total, err := repos.Users.Count(ctx, repository.UserFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
