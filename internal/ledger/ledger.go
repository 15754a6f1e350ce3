package ledger

import (
	"context"
	"errors"
)

var (
	// ErrDuplicateTransaction indicates the deposit callback was already applied and the
	// repeated delivery changed nothing.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrUnknownDeposit means the callback referenced a deposit the ledger cannot find.
	ErrUnknownDeposit = errors.New("unknown deposit")
)

const (
	// CallbackSuccess credits the deposit amount to the owner's available balance.
	CallbackSuccess = "success"
	// CallbackFailed closes the deposit without moving funds.
	CallbackFailed = "failed"
)

// Callback is the request handed to the ledger-application procedure for one webhook
// delivery.
type Callback struct {
	// DepositID is passed through untyped; the procedure signature decides its type.
	DepositID         string
	Status            string
	CheckoutRequestID string
	MerchantRequestID string
	ExternalRef       string
}

// Applier applies deposit callbacks to wallet balances. Implementations must be
// atomic and idempotent per (DepositID, Status): a replay is a no-op.
type Applier interface {
	ApplyDepositCallback(ctx context.Context, cb Callback) error
}
