// Package memory implements the domain store interfaces with plain maps.
// It backs sim mode and the test suite; serve mode uses the postgres package.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/updownmarket/internal/domain"
)

// MarketStore is a map-backed domain.MarketStore.
type MarketStore struct {
	mu      sync.RWMutex
	markets map[uint64]domain.Market
}

// NewMarketStore creates an empty MarketStore.
func NewMarketStore() *MarketStore {
	return &MarketStore{markets: make(map[uint64]domain.Market)}
}

// Insert stores a new market record.
func (s *MarketStore) Insert(_ context.Context, market domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets[market.ID] = market
	return nil
}

// Update replaces an existing market record.
func (s *MarketStore) Update(_ context.Context, market domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markets[market.ID]; !ok {
		return domain.ErrNotFound
	}
	s.markets[market.ID] = market
	return nil
}

// Get retrieves a market by id.
func (s *MarketStore) Get(_ context.Context, id uint64) (domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

// List returns markets ordered by id with pagination.
func (s *MarketStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.Market, 0, len(s.markets))
	for _, m := range s.markets {
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	if opts.Offset >= len(all) {
		return nil, nil
	}
	all = all[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all, nil
}

// Count returns the number of stored markets.
func (s *MarketStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.markets)), nil
}

type positionKey struct {
	marketID uint64
	owner    common.Address
}

// PositionStore is a map-backed domain.PositionStore.
type PositionStore struct {
	mu        sync.RWMutex
	positions map[positionKey]domain.Position
}

// NewPositionStore creates an empty PositionStore.
func NewPositionStore() *PositionStore {
	return &PositionStore{positions: make(map[positionKey]domain.Position)}
}

// Upsert inserts or overwrites the position for (market, owner).
func (s *PositionStore) Upsert(_ context.Context, pos domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[positionKey{pos.MarketID, pos.Owner}] = pos
	return nil
}

// Get retrieves the position for (market, owner).
func (s *PositionStore) Get(_ context.Context, marketID uint64, owner common.Address) (domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[positionKey{marketID, owner}]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

// ListByMarket returns every live position in a market, ordered by owner.
func (s *PositionStore) ListByMarket(_ context.Context, marketID uint64) ([]domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Position
	for key, p := range s.positions {
		if key.marketID == marketID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Owner.Hex() < out[j].Owner.Hex()
	})
	return out, nil
}

// ParamsStore holds the single engine parameter record.
type ParamsStore struct {
	mu     sync.RWMutex
	params domain.EngineParams
	seeded bool
}

// NewParamsStore creates an empty ParamsStore.
func NewParamsStore() *ParamsStore {
	return &ParamsStore{}
}

// Get returns the parameter record, or domain.ErrNotFound before the first
// Put.
func (s *ParamsStore) Get(_ context.Context) (domain.EngineParams, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.seeded {
		return domain.EngineParams{}, domain.ErrNotFound
	}
	return s.params, nil
}

// Put replaces the parameter record.
func (s *ParamsStore) Put(_ context.Context, params domain.EngineParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = params
	s.seeded = true
	return nil
}

// AuditStore is an append-only in-memory audit log.
type AuditStore struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
}

// NewAuditStore creates an empty AuditStore.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// Log appends an entry.
func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, domain.AuditEntry{
		ID:        int64(len(s.entries) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// List returns entries newest first with pagination.
func (s *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditEntry, len(s.entries))
	copy(out, s.entries)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	if opts.Offset >= len(out) {
		return nil, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Compile-time interface checks.
var (
	_ domain.MarketStore   = (*MarketStore)(nil)
	_ domain.PositionStore = (*PositionStore)(nil)
	_ domain.ParamsStore   = (*ParamsStore)(nil)
	_ domain.AuditStore    = (*AuditStore)(nil)
)
