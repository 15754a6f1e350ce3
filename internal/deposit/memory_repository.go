package deposit

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-memory deposit store for development and tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	deposits map[string]Deposit
}

// NewMemoryRepository builds an in-memory store seeded with the given deposits.
func NewMemoryRepository(seed ...Deposit) *MemoryRepository {
	r := &MemoryRepository{deposits: make(map[string]Deposit, len(seed))}
	for _, d := range seed {
		r.Put(d)
	}
	return r
}

// Put inserts or replaces a deposit. Deposits are created upstream of this service,
// so this is how development mode and tests provision them.
func (r *MemoryRepository) Put(d Deposit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.Status == "" {
		d.Status = StatusPending
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}
	r.deposits[d.ID] = d
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Deposit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.deposits[id]
	if !ok {
		return Deposit{}, ErrNotFound
	}
	return d, nil
}

func (r *MemoryRepository) FindByExternalRef(_ context.Context, ref string) (Deposit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ref == "" {
		return Deposit{}, ErrNotFound
	}
	for _, d := range r.deposits {
		if d.ExternalRef == ref {
			return d, nil
		}
	}
	return Deposit{}, ErrNotFound
}

func (r *MemoryRepository) LinkProvider(_ context.Context, id, provider, externalRef string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deposits[id]
	if !ok {
		return ErrNotFound
	}
	d.Provider = provider
	d.ExternalRef = externalRef
	d.UpdatedAt = at.UTC()
	r.deposits[id] = d
	return nil
}

// SetStatus records a terminal status. The in-memory ledger uses it to mirror what
// the database procedure does to the deposits table.
func (r *MemoryRepository) SetStatus(_ context.Context, id, status string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deposits[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = status
	d.UpdatedAt = at.UTC()
	r.deposits[id] = d
	return nil
}
