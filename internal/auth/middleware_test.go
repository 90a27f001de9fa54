package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/job-board/internal/domain"
	"github.com/spec-kit/job-board/internal/repository"
	apperrors "github.com/spec-kit/job-board/pkg/util/errorutil"
)

type brokenUsers struct {
	repository.UserRepository
}

func (brokenUsers) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, errors.New("connection refused")
}

func seedUser(t *testing.T, repos repository.Repositories, email string, active bool) *domain.User {
	t.Helper()
	user := &domain.User{FirstName: "Ana", LastName: "Lee", Email: email, Role: domain.RoleApplicant, IsActive: active}
	require.NoError(t, repos.Users.Create(context.Background(), user))
	return user
}

func TestResolve(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	tm := NewTokenManager("secret", time.Hour)
	a := NewAuthenticator(tm, repos.Users, nil)
	ctx := context.Background()

	active := seedUser(t, repos, "ana@example.com", true)
	inactive := seedUser(t, repos, "off@example.com", false)
	token, _, err := tm.GenerateToken(active)
	require.NoError(t, err)

	res := a.Resolve(ctx, BearerPrefix+token)
	require.NotNil(t, res.User)
	assert.Equal(t, active.ID, res.User.ID)
	assert.False(t, res.ClearCredential)

	res = a.Resolve(ctx, "")
	assert.Nil(t, res.User)
	assert.False(t, res.ClearCredential)

	res = a.Resolve(ctx, "Bearer garbage")
	assert.Nil(t, res.User)
	assert.True(t, res.ClearCredential)

	offToken, _, err := tm.GenerateToken(inactive)
	require.NoError(t, err)
	res = a.Resolve(ctx, BearerPrefix+offToken)
	assert.Nil(t, res.User)
	assert.True(t, res.ClearCredential)

	stale := NewTokenManager("secret", time.Hour)
	stale.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := stale.GenerateToken(active)
	require.NoError(t, err)
	res = a.Resolve(ctx, BearerPrefix+expired)
	assert.Nil(t, res.User)
	assert.True(t, res.ClearCredential)

	ghost, _, err := tm.GenerateToken(&domain.User{ID: "gone", Email: "ghost@example.com"})
	require.NoError(t, err)
	res = a.Resolve(ctx, BearerPrefix+ghost)
	assert.Nil(t, res.User)
	assert.True(t, res.ClearCredential)

	// Lookup failures leave the cookie alone.
	res = NewAuthenticator(tm, brokenUsers{repos.Users}, nil).Resolve(ctx, BearerPrefix+token)
	assert.Nil(t, res.User)
	assert.False(t, res.ClearCredential)
}

func TestIdentityMiddleware(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	tm := NewTokenManager("secret", time.Hour)
	user := seedUser(t, repos, "ana@example.com", true)
	token, _, err := tm.GenerateToken(user)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	mw := NewIdentityMiddleware(NewAuthenticator(tm, repos.Users, nil), CookieSettings{})
	app.Use(mw.Handle)
	app.Get("/whoami", func(c *fiber.Ctx) error {
		if u := IdentityFromContext(c); u != nil {
			return c.SendString(u.Email)
		}
		return c.SendString("anonymous")
	})
	app.Get("/applicant", Require(RequireApplicant), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/admin", Require(RequireAdmin), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	do := func(path, cookie string) *http.Response {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if cookie != "" {
			req.Header.Set("Cookie", "access_token="+cookie)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	resp := do("/whoami", token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Set-Cookie"))

	resp = do("/whoami", "garbage")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Set-Cookie"), "access_token=")

	assert.Equal(t, http.StatusOK, do("/applicant", token).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, do("/applicant", "").StatusCode)
	assert.Equal(t, http.StatusForbidden, do("/admin", token).StatusCode)
}
