package deposit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the deposit record store used by the payment flow.
type Repository interface {
	Get(ctx context.Context, id string) (Deposit, error)
	FindByExternalRef(ctx context.Context, ref string) (Deposit, error)
	LinkProvider(ctx context.Context, id, provider, externalRef string, at time.Time) error
}

// PostgresRepository reads and links deposits stored in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed deposit repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectDeposit = `SELECT id::text, user_id::text, amount_cents, status,
        COALESCE(provider, ''), COALESCE(external_ref, ''), created_at, updated_at
        FROM deposits`

// Get fetches a deposit by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Deposit, error) {
	return r.scanOne(ctx, selectDeposit+` WHERE id::text = $1`, id)
}

// FindByExternalRef fetches the deposit correlated with a gateway reference.
func (r *PostgresRepository) FindByExternalRef(ctx context.Context, ref string) (Deposit, error) {
	return r.scanOne(ctx, selectDeposit+` WHERE external_ref = $1`, ref)
}

// LinkProvider stores the provider and correlation reference of an opened session.
func (r *PostgresRepository) LinkProvider(ctx context.Context, id, provider, externalRef string, at time.Time) error {
	cmd, err := r.db.Exec(ctx, `UPDATE deposits SET provider = $1, external_ref = $2, updated_at = $3
        WHERE id::text = $4`, provider, externalRef, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("link deposit %s: %w", id, err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) scanOne(ctx context.Context, query string, arg string) (Deposit, error) {
	var d Deposit
	var createdAt, updatedAt time.Time
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&d.ID, &d.UserID, &d.AmountCents, &d.Status,
		&d.Provider, &d.ExternalRef, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Deposit{}, ErrNotFound
		}
		return Deposit{}, err
	}
	d.CreatedAt = createdAt.UTC()
	d.UpdatedAt = updatedAt.UTC()
	return d, nil
}
