package funding

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/crashbet/payments/internal/metrics"
	"github.com/crashbet/payments/internal/middleware"
	"github.com/crashbet/payments/internal/signature"
)

// Handler exposes the deposit initiation and gateway webhook endpoints.
type Handler struct {
	initiator  *Initiator
	reconciler *Reconciler
	metrics    *metrics.Metrics
}

// NewHandler constructs a funding handler.
func NewHandler(initiator *Initiator, reconciler *Reconciler, m *metrics.Metrics) *Handler {
	return &Handler{initiator: initiator, reconciler: reconciler, metrics: m}
}

// Initiate opens a hosted payment session for a pending deposit.
func (h *Handler) Initiate(c *fiber.Ctx) error {
	input, err := ParseInitiateRequest(c.Body())
	if err != nil {
		return h.fail(c, err)
	}
	input.Origin = c.Get(fiber.HeaderOrigin)
	input.Referer = c.Get(fiber.HeaderReferer)
	input.CallerID = middleware.UserIDFrom(c)

	result, err := h.initiator.Initiate(c.UserContext(), input)
	if err != nil {
		return h.fail(c, err)
	}

	h.metrics.Initiate("OK")
	return c.Status(http.StatusOK).JSON(InitiateResponse{
		Success:     true,
		DepositID:   result.DepositID,
		PaymentLink: result.PaymentLink,
		TxRef:       result.TxRef,
	})
}

// Webhook reconciles a gateway callback. It always acknowledges with an empty 200 so
// the gateway never retries a delivery that was deliberately ignored.
func (h *Handler) Webhook(c *fiber.Ctx) error {
	// fasthttp reuses the request buffer once the handler returns.
	body := append([]byte(nil), c.Body()...)
	h.reconciler.Reconcile(c.UserContext(), body, signature.Read(c.Get))
	c.Status(http.StatusOK)
	return nil
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	var fe *Error
	if !errors.As(err, &fe) {
		fe = newError(http.StatusInternalServerError, "INTERNAL", "internal error", err)
	}
	h.metrics.Initiate(fe.Code)
	return c.Status(fe.Status).JSON(errorResponse{Error: fe.Code, Message: fe.Message})
}
