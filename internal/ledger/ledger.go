// Package ledger provides the in-process reference implementation of the
// value-transfer capability the engine settles against. Accounts are keyed by
// address; debits and credits within a Transfer are atomic.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/updownmarket/internal/domain"
)

// Ledger is an in-memory account ledger. The zero value is not usable; use
// New.
type Ledger struct {
	mu       sync.Mutex
	balances map[common.Address]uint64
}

// New creates a Ledger seeded with the given genesis allocations.
func New(genesis map[common.Address]uint64) *Ledger {
	balances := make(map[common.Address]uint64, len(genesis))
	for addr, amount := range genesis {
		balances[addr] = amount
	}
	return &Ledger{balances: balances}
}

// Balance returns the current balance of addr. Unknown accounts hold zero.
func (l *Ledger) Balance(_ context.Context, addr common.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr], nil
}

// Transfer moves amount from one account to another. It fails with
// domain.ErrInsufficientFunds when the source balance is too low, leaving
// both accounts untouched. A zero-amount transfer is a no-op.
func (l *Ledger) Transfer(_ context.Context, from, to common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from] < amount {
		return fmt.Errorf("ledger: transfer %d from %s: %w", amount, from, domain.ErrInsufficientFunds)
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

// Credit mints amount into addr. Used only to seed test fixtures and sim
// accounts after construction.
func (l *Ledger) Credit(_ context.Context, addr common.Address, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[addr] += amount
}

// Compile-time interface check.
var _ domain.Ledger = (*Ledger)(nil)
