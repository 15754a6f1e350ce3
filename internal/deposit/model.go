package deposit

import (
	"errors"
	"time"
)

const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"

	referencePrefix = "dep_"
)

// ErrNotFound is returned when no deposit matches the lookup key.
var ErrNotFound = errors.New("deposit not found")

// Deposit is one attempted wallet top-up. Amounts are integer minor units.
type Deposit struct {
	ID          string
	UserID      string
	AmountCents int64
	Status      string
	Provider    string
	ExternalRef string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReferenceFor derives the gateway correlation reference (tx_ref) of a deposit.
func ReferenceFor(depositID string) string {
	return referencePrefix + depositID
}
