package s3blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/updownmarket/internal/domain"
)

// lockTTL bounds how long a report lock can outlive a crashed holder.
const lockTTL = 2 * time.Minute

// SettlementReport is the object written per resolved market. It snapshots
// the market record and every live position at archival time so payouts can
// be audited without the primary store.
type SettlementReport struct {
	Market     domain.Market     `json:"market"`
	Positions  []domain.Position `json:"positions"`
	ArchivedAt time.Time         `json:"archived_at"`
}

// Archiver writes one settlement report to object storage per resolved
// market. When a lock manager is configured, concurrent instances skip
// markets another instance is already archiving.
type Archiver struct {
	writer    domain.BlobWriter
	markets   domain.MarketStore
	positions domain.PositionStore
	bus       domain.SignalBus
	locks     domain.LockManager
	logger    *slog.Logger
}

// NewArchiver creates an Archiver. The bus and lock manager are optional;
// without a bus only explicit ArchiveMarket calls are served.
func NewArchiver(
	writer domain.BlobWriter,
	markets domain.MarketStore,
	positions domain.PositionStore,
	bus domain.SignalBus,
	locks domain.LockManager,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		writer:    writer,
		markets:   markets,
		positions: positions,
		bus:       bus,
		locks:     locks,
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

// reportKey is the object key for a market's settlement report.
func reportKey(marketID uint64) string {
	return fmt.Sprintf("reports/market-%d.json", marketID)
}

// ArchiveMarket snapshots a resolved market and its positions into a JSON
// report object. Unresolved markets are rejected.
func (a *Archiver) ArchiveMarket(ctx context.Context, marketID uint64) error {
	if a.locks != nil {
		unlock, err := a.locks.Acquire(ctx, fmt.Sprintf("report:%d", marketID), lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				a.logger.InfoContext(ctx, "report already being archived elsewhere",
					slog.Uint64("market_id", marketID),
				)
				return nil
			}
			return fmt.Errorf("s3blob: lock report %d: %w", marketID, err)
		}
		defer unlock()
	}

	market, err := a.markets.Get(ctx, marketID)
	if err != nil {
		return fmt.Errorf("s3blob: load market %d: %w", marketID, err)
	}
	if !market.Resolved {
		return fmt.Errorf("s3blob: market %d is not resolved", marketID)
	}

	positions, err := a.positions.ListByMarket(ctx, marketID)
	if err != nil {
		return fmt.Errorf("s3blob: load positions for market %d: %w", marketID, err)
	}

	report := SettlementReport{
		Market:     market,
		Positions:  positions,
		ArchivedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal report for market %d: %w", marketID, err)
	}

	if err := a.writer.Put(ctx, reportKey(marketID), data, "application/json"); err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "settlement report archived",
		slog.Uint64("market_id", marketID),
		slog.Int("positions", len(positions)),
	)
	return nil
}

// Run subscribes to market events and archives each market as it resolves.
// It blocks until the context is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	if a.bus == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	events, err := a.bus.Subscribe(ctx, domain.ChannelMarkets)
	if err != nil {
		return fmt.Errorf("s3blob: subscribe market events: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-events:
			if !ok {
				return nil
			}

			var event struct {
				Type    string        `json:"type"`
				Payload domain.Market `json:"payload"`
			}
			if err := json.Unmarshal(data, &event); err != nil {
				a.logger.WarnContext(ctx, "malformed market event",
					slog.String("error", err.Error()),
				)
				continue
			}
			if event.Type != domain.EventMarketResolved {
				continue
			}

			if err := a.ArchiveMarket(ctx, event.Payload.ID); err != nil {
				a.logger.ErrorContext(ctx, "archive market failed",
					slog.Uint64("market_id", event.Payload.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
