package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/updownmarket/internal/domain"
)

// Watcher subscribes to engine event channels and forwards selected events
// to the Notifier as human-readable alerts. Operators typically care about
// market resolution and treasury movement; per-stake noise stays filtered
// unless explicitly enabled in the notifier's event list.
type Watcher struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewWatcher creates a Watcher over the given bus and notifier.
func NewWatcher(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *Watcher {
	return &Watcher{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "notify_watcher")),
	}
}

// Run consumes engine events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	channels := []string{
		domain.ChannelMarkets,
		domain.ChannelStakes,
		domain.ChannelClaims,
		domain.ChannelAdmin,
	}

	merged := make(chan []byte, 64)
	for _, ch := range channels {
		events, err := w.bus.Subscribe(ctx, ch)
		if err != nil {
			return fmt.Errorf("notify: subscribe %s: %w", ch, err)
		}
		go func() {
			for data := range events {
				select {
				case merged <- data:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-merged:
			w.handle(ctx, data)
		}
	}
}

// handle decodes one event envelope and dispatches a notification for it.
func (w *Watcher) handle(ctx context.Context, data []byte) {
	var event struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &event); err != nil {
		w.logger.WarnContext(ctx, "malformed event", slog.String("error", err.Error()))
		return
	}

	title, message := renderEvent(event.Type, event.Payload)
	if title == "" {
		return
	}

	if err := w.notifier.Notify(ctx, event.Type, title, message); err != nil {
		w.logger.WarnContext(ctx, "notification delivery failed",
			slog.String("event", event.Type),
			slog.String("error", err.Error()),
		)
	}
}

// renderEvent turns a raw engine event into a title and body. Unknown event
// types render nothing.
func renderEvent(eventType string, payload json.RawMessage) (title, message string) {
	switch eventType {
	case domain.EventMarketCreated:
		var m domain.Market
		if json.Unmarshal(payload, &m) != nil {
			return "", ""
		}
		return "Market created",
			fmt.Sprintf("Market %d opened: start price %d, window [%d, %d)",
				m.ID, m.StartPrice, m.StartBlock, m.EndBlock)

	case domain.EventMarketResolved:
		var m domain.Market
		if json.Unmarshal(payload, &m) != nil {
			return "", ""
		}
		return "Market resolved",
			fmt.Sprintf("Market %d resolved %s: start %d, end %d, pool %d",
				m.ID, m.WinningDirection(), m.StartPrice, m.EndPrice, m.TotalStake())

	case domain.EventStakeRecorded:
		var s domain.StakeRecorded
		if json.Unmarshal(payload, &s) != nil {
			return "", ""
		}
		return "Stake recorded",
			fmt.Sprintf("%s staked %d on %s in market %d",
				s.Caller.Hex(), s.Amount, s.Direction, s.MarketID)

	case domain.EventWinningsClaimed:
		var c domain.WinningsClaimed
		if json.Unmarshal(payload, &c) != nil {
			return "", ""
		}
		return "Winnings claimed",
			fmt.Sprintf("%s claimed %d from market %d (fee %d)",
				c.Caller.Hex(), c.Payout, c.MarketID, c.Fee)

	case domain.EventFeesWithdrawn:
		var f domain.FeesWithdrawn
		if json.Unmarshal(payload, &f) != nil {
			return "", ""
		}
		return "Fees withdrawn",
			fmt.Sprintf("Owner withdrew %d from the pool", f.Amount)

	default:
		return "", ""
	}
}
