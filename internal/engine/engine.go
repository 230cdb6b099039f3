// Package engine implements the market registry and settlement engine: market
// creation, staking, oracle-gated resolution, proportional claim settlement,
// and the owner-only administrative controls.
//
// Every operation is applied as one atomic, totally-ordered state transition:
// a single mutex serializes all calls, and each call validates every rule
// before committing any mutation, so a failed call leaves state untouched.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/updownmarket/internal/domain"
)

// Deps bundles everything the engine needs. Markets, Positions, Params,
// Ledger, and Clock are required; Cache, Audit, and Bus are optional and
// skipped when nil.
type Deps struct {
	Markets   domain.MarketStore
	Positions domain.PositionStore
	Params    domain.ParamsStore
	Ledger    domain.Ledger
	Clock     domain.BlockClock
	Cache     domain.MarketCache
	Audit     domain.AuditStore
	Bus       domain.SignalBus

	// Account is the engine's own ledger address holding the pooled balance.
	Account common.Address
}

// Engine is the authoritative state machine over markets and positions.
type Engine struct {
	mu sync.Mutex

	markets   domain.MarketStore
	positions domain.PositionStore
	params    domain.ParamsStore
	ledger    domain.Ledger
	clock     domain.BlockClock
	cache     domain.MarketCache
	audit     domain.AuditStore
	bus       domain.SignalBus
	account   common.Address
	logger    *slog.Logger
}

// New creates an Engine from the given dependencies.
func New(deps Deps, logger *slog.Logger) *Engine {
	return &Engine{
		markets:   deps.Markets,
		positions: deps.Positions,
		params:    deps.Params,
		ledger:    deps.Ledger,
		clock:     deps.Clock,
		cache:     deps.Cache,
		audit:     deps.Audit,
		bus:       deps.Bus,
		account:   deps.Account,
		logger:    logger.With(slog.String("component", "engine")),
	}
}

// Bootstrap seeds the parameter record when the store is empty. An existing
// record is left alone so restarts keep the live configuration.
func (e *Engine) Bootstrap(ctx context.Context, initial domain.EngineParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, err := e.params.Get(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("engine: bootstrap: %w", err)
	}
	if initial.NextMarketID == 0 {
		initial.NextMarketID = 1
	}
	if err := e.params.Put(ctx, initial); err != nil {
		return fmt.Errorf("engine: bootstrap: %w", err)
	}

	e.logger.InfoContext(ctx, "seeded engine parameters",
		slog.String("owner", initial.Owner.Hex()),
		slog.String("oracle", initial.Oracle.Hex()),
		slog.Uint64("minimum_stake", initial.MinimumStake),
		slog.Uint64("fee_percentage", initial.FeePercentage),
	)
	return nil
}

// Account returns the engine's pooled-balance ledger address.
func (e *Engine) Account() common.Address {
	return e.account
}

// publish serializes an event envelope onto the signal bus. Bus failures are
// logged, never surfaced: events are advisory, state has already committed.
func (e *Engine) publish(ctx context.Context, channel, eventType string, payload any) {
	if e.bus == nil {
		return
	}
	data, err := json.Marshal(domain.Event{Type: eventType, Payload: payload})
	if err != nil {
		e.logger.ErrorContext(ctx, "marshal event failed",
			slog.String("event", eventType),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := e.bus.Publish(ctx, channel, data); err != nil {
		e.logger.WarnContext(ctx, "publish event failed",
			slog.String("event", eventType),
			slog.String("error", err.Error()),
		)
	}
}

// record appends an audit entry. Audit failures are logged, never surfaced.
func (e *Engine) record(ctx context.Context, event string, detail map[string]any) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Log(ctx, event, detail); err != nil {
		e.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// invalidate drops a market from the read cache after a mutation. Cache
// failures are logged; the entry expires on its own TTL regardless.
func (e *Engine) invalidate(ctx context.Context, id uint64) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx, id); err != nil {
		e.logger.WarnContext(ctx, "cache invalidate failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// getMarket maps a store lookup miss onto the market-not-found code.
func (e *Engine) getMarket(ctx context.Context, id uint64) (domain.Market, error) {
	m, err := e.markets.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Market{}, domain.Fail(domain.ErrMarketNotFound, domain.ConditionNoSuchMarket)
		}
		return domain.Market{}, fmt.Errorf("engine: get market %d: %w", id, err)
	}
	return m, nil
}

// loadParams fetches the parameter record; the engine cannot operate without
// one, so a miss is an error rather than a default.
func (e *Engine) loadParams(ctx context.Context) (domain.EngineParams, error) {
	p, err := e.params.Get(ctx)
	if err != nil {
		return domain.EngineParams{}, fmt.Errorf("engine: load params: %w", err)
	}
	return p, nil
}
