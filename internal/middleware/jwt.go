package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/crashbet/payments/internal/auth"
)

// UserIDLocal is the fiber local holding the authenticated caller id.
const UserIDLocal = "user_id"

// JWTAuth validates HS256 bearer tokens issued by the identity provider and stores the
// subject as the caller id. With an empty secret authentication is disabled, which is
// only acceptable in development.
func JWTAuth(secret string, logger *slog.Logger) fiber.Handler {
	if secret == "" {
		if logger != nil {
			logger.Warn("jwt secret not configured, caller authentication disabled")
		}
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	key := []byte(secret)

	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		claims, err := auth.ParseAndVerifyHS256(tokenStr, key, time.Now())
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals(UserIDLocal, claims.Subject)
		return c.Next()
	}
}

// UserIDFrom returns the caller id set by JWTAuth, or "".
func UserIDFrom(c *fiber.Ctx) string {
	uid, _ := c.Locals(UserIDLocal).(string)
	return uid
}
