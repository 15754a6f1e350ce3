package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation    = "23505"
	noDataFound        = "P0002"
	applyCallbackQuery = `SELECT deposit_apply_callback(
        p_deposit_id => $1,
        p_status => $2,
        p_checkout_request_id => $3,
        p_merchant_request_id => $4,
        p_external_ref => $5)`
)

// PostgresLedger delegates balance mutation to the deposit_apply_callback stored
// procedure, which owns the available/locked balances and ledger rows.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// ApplyDepositCallback invokes the stored procedure exactly once.
func (l *PostgresLedger) ApplyDepositCallback(ctx context.Context, cb Callback) error {
	if cb.Status != CallbackSuccess && cb.Status != CallbackFailed {
		return fmt.Errorf("invalid callback status %q", cb.Status)
	}

	_, err := l.db.Exec(ctx, applyCallbackQuery,
		cb.DepositID, cb.Status, cb.CheckoutRequestID, nullIfEmpty(cb.MerchantRequestID), nullIfEmpty(cb.ExternalRef))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case uniqueViolation:
				return ErrDuplicateTransaction
			case noDataFound:
				return ErrUnknownDeposit
			}
		}
		return fmt.Errorf("apply deposit callback %s: %w", cb.DepositID, err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
