package auth

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/job-board/internal/domain"
	"github.com/spec-kit/job-board/internal/repository"
)

const identityKey = "auth_identity"

// Resolution is the outcome of resolving a credential.
// User is nil for anonymous callers. ClearCredential asks the transport
// to drop a cookie that was present but unusable.
type Resolution struct {
	User            *domain.User
	ClearCredential bool
}

// Authenticator turns a raw cookie value into an identity.
type Authenticator struct {
	tokens *TokenManager
	users  repository.UserRepository
	logger *zap.Logger
}

// NewAuthenticator constructs the resolver.
func NewAuthenticator(tokens *TokenManager, users repository.UserRepository, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{tokens: tokens, users: users, logger: logger}
}

// Resolve never fails: any problem with the credential yields an anonymous result.
func (a *Authenticator) Resolve(ctx context.Context, raw string) Resolution {
	token, ok := ExtractToken(raw)
	if !ok {
		return Resolution{ClearCredential: raw != ""}
	}

	claims, err := a.tokens.ParseToken(token)
	if err != nil {
		return Resolution{ClearCredential: true}
	}

	user, err := a.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Resolution{ClearCredential: true}
		}
		a.logger.Warn("identity lookup failed", zap.Error(err))
		return Resolution{}
	}
	if !user.IsActive {
		return Resolution{ClearCredential: true}
	}
	if claims.UserID != "" && claims.UserID != user.ID {
		return Resolution{ClearCredential: true}
	}
	return Resolution{User: user}
}

// IdentityMiddleware resolves the caller for every request. It never rejects;
// route gates decide whether an anonymous caller is acceptable.
type IdentityMiddleware struct {
	authenticator *Authenticator
	cookie        CookieSettings
}

// NewIdentityMiddleware constructs middleware.
func NewIdentityMiddleware(authenticator *Authenticator, cookie CookieSettings) *IdentityMiddleware {
	return &IdentityMiddleware{authenticator: authenticator, cookie: cookie}
}

// Handle stores the resolved user in the request locals.
func (m *IdentityMiddleware) Handle(c *fiber.Ctx) error {
	raw := c.Cookies(m.cookie.name())
	res := m.authenticator.Resolve(c.UserContext(), raw)
	if res.ClearCredential {
		ClearAccessCookie(c, m.cookie)
	}
	if res.User != nil {
		c.Locals(identityKey, res.User)
	}
	return c.Next()
}

// IdentityFromContext retrieves the authenticated user, or nil.
func IdentityFromContext(c *fiber.Ctx) *domain.User {
	user, _ := c.Locals(identityKey).(*domain.User)
	return user
}
