package middleware

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

const (
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type, idempotency-key, x-request-id"
	corsAllowMethods = "POST, OPTIONS"
)

// CORS answers every preflight with 204 and decorates every other response with a
// permissive origin for the browser client.
func CORS() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		c.Set(fiber.HeaderAccessControlAllowHeaders, corsAllowHeaders)
		c.Set(fiber.HeaderAccessControlAllowMethods, corsAllowMethods)
		if c.Method() == fiber.MethodOptions {
			c.Status(http.StatusNoContent)
			return nil
		}
		return c.Next()
	}
}
