package funding

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/crashbet/payments/internal/gateway"
)

// InitiateRequest is the client body of POST .../initiate. Optional fields are
// pointers so absence and zero values stay distinguishable.
type InitiateRequest struct {
	DepositID   *string      `json:"deposit_id"`
	AmountCents *json.Number `json:"amount_cents"`
	Email       *string      `json:"email"`
	Phone       *string      `json:"phone"`
}

// InitiateResponse is returned when a hosted payment session was opened and linked.
type InitiateResponse struct {
	Success     bool   `json:"success"`
	DepositID   string `json:"deposit_id"`
	PaymentLink string `json:"payment_link"`
	TxRef       string `json:"tx_ref"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// webhookEvent is the part of the gateway callback the reconciler reads. Its content is
// only a hint; the verify-by-reference call is authoritative.
type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID        gateway.FlexString `json:"id"`
		TxRef     string             `json:"tx_ref"`
		Reference string             `json:"reference"`
		FlwRef    string             `json:"flw_ref"`
		Status    string             `json:"status"`
	} `json:"data"`
}

func (e webhookEvent) txRef() string {
	if ref := strings.TrimSpace(e.Data.TxRef); ref != "" {
		return ref
	}
	return strings.TrimSpace(e.Data.Reference)
}

func (e webhookEvent) providerRef() string {
	if e.Data.ID != "" {
		return string(e.Data.ID)
	}
	return strings.TrimSpace(e.Data.FlwRef)
}

// ParseInitiateRequest decodes and validates an initiation body.
func ParseInitiateRequest(body []byte) (InitiateInput, error) {
	var req InitiateRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&req); err != nil {
		return InitiateInput{}, newError(http.StatusBadRequest, CodeInvalidJSON, "request body must be a JSON object", err)
	}

	const inputMessage = "deposit_id and amount_cents required; amount_cents > 0"

	var depositID string
	if req.DepositID != nil {
		depositID = strings.TrimSpace(*req.DepositID)
	}
	if depositID == "" || req.AmountCents == nil {
		return InitiateInput{}, badRequest(CodeInvalidInput, inputMessage)
	}

	amount, err := decimal.NewFromString(req.AmountCents.String())
	if err != nil {
		return InitiateInput{}, badRequest(CodeInvalidInput, inputMessage)
	}
	if !amount.IsPositive() {
		return InitiateInput{}, badRequest(CodeInvalidInput, inputMessage)
	}
	if !amount.IsInteger() || !amount.LessThanOrEqual(decimal.NewFromInt(maxAmountCents)) {
		return InitiateInput{}, badRequest(CodeInvalidAmount, "amount_cents must be a whole number of cents")
	}
	cents := amount.IntPart()
	if !gateway.MajorUnits(cents).IsPositive() {
		return InitiateInput{}, badRequest(CodeInvalidAmount, "Amount too small")
	}

	input := InitiateInput{DepositID: depositID, AmountCents: cents}
	if req.Email != nil {
		input.Email = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		input.Phone = strings.Join(strings.Fields(*req.Phone), "")
	}
	return input, nil
}
