package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// BearerPrefix precedes the signed token inside the cookie value.
const BearerPrefix = "Bearer "

// CookieSettings controls how the access cookie is written.
type CookieSettings struct {
	Name   string
	Secure bool
}

func (s CookieSettings) name() string {
	if s.Name == "" {
		return "access_token"
	}
	return s.Name
}

// SetAccessCookie stores "Bearer <token>" in an HttpOnly cookie.
func SetAccessCookie(c *fiber.Ctx, settings CookieSettings, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.Cookie(&fiber.Cookie{
		Name:     settings.name(),
		Value:    BearerPrefix + token,
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  expiresAt,
		HTTPOnly: true,
		Secure:   settings.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearAccessCookie expires the access cookie on the client.
func ClearAccessCookie(c *fiber.Ctx, settings CookieSettings) {
	c.Cookie(&fiber.Cookie{
		Name:     settings.name(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   settings.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ExtractToken strips the optional bearer tag from a raw cookie value.
func ExtractToken(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if len(raw) >= len(BearerPrefix) && strings.EqualFold(raw[:len(BearerPrefix)], BearerPrefix) {
		raw = strings.TrimSpace(raw[len(BearerPrefix):])
	}
	if raw == "" {
		return "", false
	}
	return raw, true
}
