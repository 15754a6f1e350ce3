package funding

import (
	"fmt"
	"net/http"
)

// Error codes reported to initiation callers.
const (
	CodeInvalidJSON          = "INVALID_JSON"
	CodeInvalidInput         = "INVALID_INPUT"
	CodeInvalidAmount        = "INVALID_AMOUNT"
	CodeEmailRequired        = "EMAIL_REQUIRED"
	CodeDepositNotFound      = "DEPOSIT_NOT_FOUND"
	CodeConfigMissing        = "CONFIG_MISSING"
	CodeDBLookupFailed       = "DB_LOOKUP_FAILED"
	CodeDBUpdateFailed       = "DB_UPDATE_FAILED"
	CodeIdentityLookupFailed = "IDENTITY_LOOKUP_FAILED"
	CodeNoPaymentLink        = "NO_PAYMENT_LINK"
	CodePaymentInitFailed    = "PAYMENT_INIT_FAILED"
	CodeNotFound             = "NOT_FOUND"
)

// Error is a client-visible initiation failure.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(status int, code, message string, err error) *Error {
	return &Error{Status: status, Code: code, Message: message, Err: err}
}

func badRequest(code, message string) *Error {
	return newError(http.StatusBadRequest, code, message, nil)
}
