package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/updownmarket/internal/domain"
)

// Claim settles the caller's position in a resolved market and returns the
// net payout. Payout arithmetic is integer floor division, applied in this
// exact order:
//
//	gross = floor(stake * total_stake / winning_stake)
//	fee   = floor(gross * fee_percentage / 100)
//	net   = gross - fee
//
// A position claims at most once; the claimed flag flips inside the same
// atomic step as the two value transfers.
func (e *Engine) Claim(ctx context.Context, caller common.Address, marketID uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	market, err := e.getMarket(ctx, marketID)
	if err != nil {
		return 0, err
	}
	if !market.Resolved {
		return 0, domain.Fail(domain.ErrMarketInactive, domain.ConditionUnresolved)
	}

	pos, err := e.positions.Get(ctx, marketID, caller)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// A missing position reports the same code as a missing market.
			return 0, domain.Fail(domain.ErrMarketNotFound, domain.ConditionNoPosition)
		}
		return 0, fmt.Errorf("engine: get position: %w", err)
	}
	if pos.Claimed {
		return 0, domain.Fail(domain.ErrRewardsAlreadyClaimed, domain.ConditionAlreadyClaimed)
	}

	winner := market.WinningDirection()
	if pos.Direction != winner {
		// "Not a winner" reuses the invalid-prediction-type code. Preserved
		// observable behavior.
		return 0, domain.Fail(domain.ErrInvalidPredictionType, domain.ConditionNotWinner)
	}

	winningStake := market.WinningStake()
	if winningStake == 0 {
		// Structurally unreachable for an actual winner, whose own stake is
		// part of winningStake. Guarded regardless.
		return 0, domain.Fail(domain.ErrDivisionByZero, domain.ConditionZeroWinningPool)
	}

	params, err := e.loadParams(ctx)
	if err != nil {
		return 0, err
	}

	gross, fee := payout(pos.Stake, market.TotalStake(), winningStake, params.FeePercentage)
	net := gross - fee

	pool, err := e.ledger.Balance(ctx, e.account)
	if err != nil {
		return 0, fmt.Errorf("engine: read pooled balance: %w", err)
	}
	if pool < gross {
		return 0, domain.Fail(domain.ErrInsufficientFunds, domain.ConditionPoolShort)
	}

	// All checks passed; commit.
	if err := e.ledger.Transfer(ctx, e.account, caller, net); err != nil {
		return 0, fmt.Errorf("engine: pay out winnings: %w", err)
	}
	if err := e.ledger.Transfer(ctx, e.account, params.Owner, fee); err != nil {
		return 0, fmt.Errorf("engine: collect fee: %w", err)
	}

	claimedAt := time.Now().UTC()
	pos.Claimed = true
	pos.ClaimedAt = &claimedAt
	if err := e.positions.Upsert(ctx, pos); err != nil {
		return 0, fmt.Errorf("engine: mark position claimed: %w", err)
	}

	e.record(ctx, domain.EventWinningsClaimed, map[string]any{
		"market_id": marketID,
		"caller":    caller.Hex(),
		"payout":    net,
		"fee":       fee,
	})
	e.publish(ctx, domain.ChannelClaims, domain.EventWinningsClaimed, domain.WinningsClaimed{
		MarketID: marketID,
		Caller:   caller,
		Payout:   net,
		Fee:      fee,
	})

	e.logger.InfoContext(ctx, "winnings claimed",
		slog.Uint64("market_id", marketID),
		slog.String("caller", caller.Hex()),
		slog.Uint64("payout", net),
		slog.Uint64("fee", fee),
	)
	return net, nil
}

// payout computes the gross share and the fee using arbitrary-precision
// intermediates: stake * total can exceed 64 bits even though the final
// quotient never does (stake <= winningStake implies gross <= total).
func payout(stake, total, winningStake, feePct uint64) (gross, fee uint64) {
	g := new(big.Int).SetUint64(stake)
	g.Mul(g, new(big.Int).SetUint64(total))
	g.Div(g, new(big.Int).SetUint64(winningStake))
	gross = g.Uint64()

	f := new(big.Int).SetUint64(gross)
	f.Mul(f, new(big.Int).SetUint64(feePct))
	f.Div(f, big.NewInt(100))
	fee = f.Uint64()
	return gross, fee
}

// GetMarket returns a market by id, read through the cache when one is
// configured. Returns domain.ErrMarketNotFound on a miss.
func (e *Engine) GetMarket(ctx context.Context, id uint64) (domain.Market, error) {
	if e.cache != nil {
		if m, err := e.cache.Get(ctx, id); err == nil {
			return m, nil
		}
	}

	m, err := e.getMarket(ctx, id)
	if err != nil {
		return domain.Market{}, err
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, m); err != nil {
			e.logger.WarnContext(ctx, "cache set failed",
				slog.Uint64("market_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return m, nil
}

// ListMarkets returns markets ordered by id.
func (e *Engine) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := e.markets.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("engine: list markets: %w", err)
	}
	return markets, nil
}

// CountMarkets returns the total number of markets ever created.
func (e *Engine) CountMarkets(ctx context.Context) (int64, error) {
	total, err := e.markets.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("engine: count markets: %w", err)
	}
	return total, nil
}

// GetPosition returns the caller's position in a market. Returns
// domain.ErrNotFound on a miss.
func (e *Engine) GetPosition(ctx context.Context, marketID uint64, owner common.Address) (domain.Position, error) {
	pos, err := e.positions.Get(ctx, marketID, owner)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("engine: get position: %w", err)
	}
	return pos, nil
}

// PoolBalance returns the engine's current pooled balance.
func (e *Engine) PoolBalance(ctx context.Context) (uint64, error) {
	balance, err := e.ledger.Balance(ctx, e.account)
	if err != nil {
		return 0, fmt.Errorf("engine: pooled balance: %w", err)
	}
	return balance, nil
}

// AccountBalance returns the ledger balance of an arbitrary address.
func (e *Engine) AccountBalance(ctx context.Context, addr common.Address) (uint64, error) {
	balance, err := e.ledger.Balance(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("engine: balance of %s: %w", addr, err)
	}
	return balance, nil
}
