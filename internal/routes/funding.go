package routes

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/crashbet/payments/internal/funding"
)

const (
	initiateSuffix = "/initiate"
	webhookSuffix  = "/webhook"
)

// FundingMiddleware guards the initiation endpoint. The webhook carries no caller
// identity and is authenticated by its signature instead.
type FundingMiddleware struct {
	Auth        fiber.Handler
	Idempotency fiber.Handler
	RateLimit   fiber.Handler
}

// RegisterFundingRoutes dispatches POST requests by path suffix so the service can sit
// behind any prefix (/functions/v1/flutterwave/initiate, /api/deposits/webhook, ...).
func RegisterFundingRoutes(app *fiber.App, h *funding.Handler, mw FundingMiddleware) {
	chain := []fiber.Handler{}
	for _, m := range []fiber.Handler{mw.Auth, mw.RateLimit, mw.Idempotency} {
		if m != nil {
			chain = append(chain, onSuffix(initiateSuffix, m))
		}
	}
	chain = append(chain, func(c *fiber.Ctx) error {
		switch {
		case hasSuffix(c.Path(), initiateSuffix):
			return h.Initiate(c)
		case hasSuffix(c.Path(), webhookSuffix):
			return h.Webhook(c)
		default:
			return c.Next()
		}
	})
	app.Post("/*", chain...)
}

func onSuffix(suffix string, handler fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !hasSuffix(c.Path(), suffix) {
			return c.Next()
		}
		return handler(c)
	}
}

func hasSuffix(path, suffix string) bool {
	return strings.HasSuffix(strings.TrimRight(path, "/"), suffix)
}
