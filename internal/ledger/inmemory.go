package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/crashbet/payments/internal/deposit"
)

// DepositStore is the slice of the deposit store the in-memory ledger mutates, the way
// the database procedure updates the deposits table.
type DepositStore interface {
	Get(ctx context.Context, id string) (deposit.Deposit, error)
	SetStatus(ctx context.Context, id, status string, at time.Time) error
}

// InMemoryLedger is a concurrency-safe, idempotent stand-in for the
// deposit_apply_callback procedure used in development and tests.
type InMemoryLedger struct {
	mu       sync.Mutex
	deposits DepositStore
	balances map[string]int64
	applied  map[string]Callback
}

// NewInMemory creates an in-memory ledger over the given deposit store.
func NewInMemory(deposits DepositStore) *InMemoryLedger {
	return &InMemoryLedger{
		deposits: deposits,
		balances: make(map[string]int64),
		applied:  make(map[string]Callback),
	}
}

// ApplyDepositCallback settles a pending deposit once. Any later callback for the same
// deposit returns ErrDuplicateTransaction and leaves balances untouched.
func (l *InMemoryLedger) ApplyDepositCallback(ctx context.Context, cb Callback) error {
	if cb.Status != CallbackSuccess && cb.Status != CallbackFailed {
		return errors.New("invalid callback status")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, done := l.applied[cb.DepositID]; done {
		return ErrDuplicateTransaction
	}

	d, err := l.deposits.Get(ctx, cb.DepositID)
	if err != nil {
		if errors.Is(err, deposit.ErrNotFound) {
			return ErrUnknownDeposit
		}
		return err
	}
	if d.Status != deposit.StatusPending {
		return ErrDuplicateTransaction
	}

	if err := l.deposits.SetStatus(ctx, d.ID, cb.Status, time.Now().UTC()); err != nil {
		return err
	}
	if cb.Status == CallbackSuccess {
		l.balances[d.UserID] += d.AmountCents
	}
	l.applied[cb.DepositID] = cb
	return nil
}

// Balance returns the available balance credited to a user, in minor units.
func (l *InMemoryLedger) Balance(_ context.Context, userID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID]
}

// Applied returns the callback recorded for a deposit, if any.
func (l *InMemoryLedger) Applied(depositID string) (Callback, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cb, ok := l.applied[depositID]
	return cb, ok
}
