package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// MarketStore persists market records.
type MarketStore interface {
	Insert(ctx context.Context, market Market) error
	Update(ctx context.Context, market Market) error
	Get(ctx context.Context, id uint64) (Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// PositionStore persists positions keyed by (market id, owner).
type PositionStore interface {
	Upsert(ctx context.Context, pos Position) error
	Get(ctx context.Context, marketID uint64, owner common.Address) (Position, error)
	ListByMarket(ctx context.Context, marketID uint64) ([]Position, error)
}

// ParamsStore persists the single engine parameter record.
type ParamsStore interface {
	Get(ctx context.Context) (EngineParams, error)
	Put(ctx context.Context, params EngineParams) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of state-mutating operations.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// Ledger is the external value-transfer capability the engine settles
// against. Transfers are atomic: they either move the full amount or fail
// with ErrInsufficientFunds and move nothing.
type Ledger interface {
	Balance(ctx context.Context, addr common.Address) (uint64, error)
	Transfer(ctx context.Context, from, to common.Address, amount uint64) error
}

// BlockClock reports the current logical time. Block height advances
// externally; the engine only ever reads it.
type BlockClock interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// MarketCache is a read-through cache in front of the market store.
type MarketCache interface {
	Get(ctx context.Context, id uint64) (Market, error)
	Set(ctx context.Context, market Market) error
	Invalidate(ctx context.Context, id uint64) error
}

// SignalBus is a lightweight pub/sub fabric for engine events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// LockManager hands out named distributed locks with a TTL.
type LockManager interface {
	// Acquire returns an unlock function on success, or ErrLockHeld when the
	// lock is already taken.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter applies sliding-window request limits keyed by caller.
type RateLimiter interface {
	// Allow reports whether a request under key is permitted, counting it
	// when it is.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// BlobWriter stores opaque objects, e.g. settlement reports.
type BlobWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}
