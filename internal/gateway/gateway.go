package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ProviderName is persisted on deposits linked to a hosted payment session.
const ProviderName = "flutterwave"

// CodePaymentInitFailed is reported when the gateway refuses to open a session.
const CodePaymentInitFailed = "PAYMENT_INIT_FAILED"

var (
	// ErrNoPaymentLink means the gateway accepted the session but returned no redirect
	// link. It is an integration fault and retrying will not help.
	ErrNoPaymentLink = errors.New("gateway returned no payment link")

	// ErrVerificationFailed covers every way a verify-by-reference call can fail to
	// produce a trustworthy transaction record.
	ErrVerificationFailed = errors.New("transaction verification failed")

	// ErrMissingSecretKey is returned before any network call when no API key is set.
	ErrMissingSecretKey = errors.New("gateway secret key is not configured")
)

// Gateway is the contract the deposit flow needs from the payment provider.
type Gateway interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (PaymentSession, error)
	VerifyByReference(ctx context.Context, txRef string) (Transaction, error)
}

// PaymentRequest describes a hosted checkout session for one deposit.
type PaymentRequest struct {
	TxRef         string
	AmountCents   int64
	Currency      string
	CustomerEmail string
	CustomerName  string
	CustomerPhone string
	RedirectURL   string
}

// PaymentSession is the provider's answer to CreatePayment.
type PaymentSession struct {
	Link   string
	Status string
}

// Transaction is the provider's own record of a payment, used as the source of truth
// when reconciling a webhook.
type Transaction struct {
	ID            string
	TxRef         string
	FlwRef        string
	Status        string
	Currency      string
	Amount        decimal.NullDecimal
	ChargedAmount decimal.NullDecimal
}

// Charged returns the charged amount in major units, falling back to the nominal
// amount when the provider omits charged_amount.
func (t Transaction) Charged() decimal.Decimal {
	if t.ChargedAmount.Valid {
		return t.ChargedAmount.Decimal
	}
	if t.Amount.Valid {
		return t.Amount.Decimal
	}
	return decimal.Zero
}

// Error is a gateway refusal carrying the status the provider answered with.
type Error struct {
	Code       string
	HTTPStatus int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// MajorUnits converts integer minor units (cents) into a major-unit decimal.
func MajorUnits(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-2)
}

// FlexString decodes identifiers the provider sends either as JSON strings or numbers.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier is neither string nor number: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}
