package ledger

// SeedBalance is a test helper that seeds the available balance of a user in the
// in-memory ledger.
func SeedBalance(l Applier, userID string, amount int64) {
	if mem, ok := l.(*InMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[userID] = amount
	}
}
