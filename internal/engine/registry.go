package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/updownmarket/internal/domain"
)

// CreateMarket registers a new market anchored at startPrice and open for
// staking while startBlock <= now < endBlock. Only the platform owner may
// create markets. Returns the allocated market id.
func (e *Engine) CreateMarket(ctx context.Context, caller common.Address, startPrice, startBlock, endBlock uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	params, err := e.loadParams(ctx)
	if err != nil {
		return 0, err
	}
	if caller != params.Owner {
		return 0, domain.Fail(domain.ErrUnauthorized, domain.ConditionNotOwner)
	}
	if endBlock <= startBlock {
		return 0, domain.Fail(domain.ErrInvalidParameters, domain.ConditionBadWindow)
	}
	if startPrice == 0 {
		return 0, domain.Fail(domain.ErrInvalidParameters, domain.ConditionZeroStartPrice)
	}

	id := params.NextMarketID
	market := domain.Market{
		ID:         id,
		StartPrice: startPrice,
		StartBlock: startBlock,
		EndBlock:   endBlock,
		CreatedAt:  time.Now().UTC(),
	}

	// The counter is bumped before the market insert so an id is never
	// reused, even if the insert below fails.
	params.NextMarketID++
	params.UpdatedAt = time.Now().UTC()
	if err := e.params.Put(ctx, params); err != nil {
		return 0, fmt.Errorf("engine: advance market counter: %w", err)
	}
	if err := e.markets.Insert(ctx, market); err != nil {
		return 0, fmt.Errorf("engine: insert market %d: %w", id, err)
	}

	e.record(ctx, domain.EventMarketCreated, map[string]any{
		"market_id":   id,
		"start_price": startPrice,
		"start_block": startBlock,
		"end_block":   endBlock,
	})
	e.publish(ctx, domain.ChannelMarkets, domain.EventMarketCreated, market)

	e.logger.InfoContext(ctx, "market created",
		slog.Uint64("market_id", id),
		slog.Uint64("start_price", startPrice),
		slog.Uint64("start_block", startBlock),
		slog.Uint64("end_block", endBlock),
	)
	return id, nil
}

// RecordStake locks amount from the caller's balance against one direction
// of an open market. A repeat stake from the same caller overwrites the
// previous position without reversing its contribution to the market totals;
// see the Position doc comment.
func (e *Engine) RecordStake(ctx context.Context, caller common.Address, marketID uint64, direction domain.Direction, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	market, err := e.getMarket(ctx, marketID)
	if err != nil {
		return err
	}

	now, err := e.clock.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("engine: read block height: %w", err)
	}
	if now < market.StartBlock {
		return domain.Fail(domain.ErrMarketExpired, domain.ConditionNotYetOpen)
	}
	if now >= market.EndBlock {
		return domain.Fail(domain.ErrMarketExpired, domain.ConditionAlreadyClosed)
	}

	if !direction.Valid() {
		return domain.Fail(domain.ErrInvalidPredictionType, domain.ConditionBadDirection)
	}

	params, err := e.loadParams(ctx)
	if err != nil {
		return err
	}
	if amount < params.MinimumStake {
		// The engine reports a sub-minimum stake under the same code as a
		// malformed direction. Preserved observable behavior.
		return domain.Fail(domain.ErrInvalidPredictionType, domain.ConditionStakeBelowMin)
	}

	balance, err := e.ledger.Balance(ctx, caller)
	if err != nil {
		return fmt.Errorf("engine: read balance of %s: %w", caller, err)
	}
	if amount > balance {
		return domain.Fail(domain.ErrInsufficientFunds, domain.ConditionBalanceTooLow)
	}

	// All checks passed; commit.
	if err := e.ledger.Transfer(ctx, caller, e.account, amount); err != nil {
		return fmt.Errorf("engine: pool stake: %w", err)
	}

	pos := domain.Position{
		MarketID:  marketID,
		Owner:     caller,
		Direction: direction,
		Stake:     amount,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.positions.Upsert(ctx, pos); err != nil {
		return fmt.Errorf("engine: upsert position: %w", err)
	}

	if direction == domain.DirectionUp {
		market.TotalUpStake += amount
	} else {
		market.TotalDownStake += amount
	}
	if err := e.markets.Update(ctx, market); err != nil {
		return fmt.Errorf("engine: update market %d totals: %w", marketID, err)
	}
	e.invalidate(ctx, marketID)

	e.record(ctx, domain.EventStakeRecorded, map[string]any{
		"market_id": marketID,
		"caller":    caller.Hex(),
		"direction": string(direction),
		"amount":    amount,
	})
	e.publish(ctx, domain.ChannelStakes, domain.EventStakeRecorded, domain.StakeRecorded{
		MarketID:  marketID,
		Caller:    caller,
		Direction: direction,
		Amount:    amount,
	})

	e.logger.InfoContext(ctx, "stake recorded",
		slog.Uint64("market_id", marketID),
		slog.String("caller", caller.Hex()),
		slog.String("direction", string(direction)),
		slog.Uint64("amount", amount),
	)
	return nil
}

// Resolve fixes a market's final price and unlocks claims. Only the
// configured oracle may resolve, only at or after the market's end block,
// and only once.
func (e *Engine) Resolve(ctx context.Context, caller common.Address, marketID, endPrice uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	params, err := e.loadParams(ctx)
	if err != nil {
		return err
	}
	if caller != params.Oracle {
		return domain.Fail(domain.ErrUnauthorized, domain.ConditionNotOracle)
	}

	market, err := e.getMarket(ctx, marketID)
	if err != nil {
		return err
	}

	now, err := e.clock.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("engine: read block height: %w", err)
	}
	if now < market.EndBlock {
		return domain.Fail(domain.ErrMarketExpired, domain.ConditionNotYetClosed)
	}
	if market.Resolved {
		return domain.Fail(domain.ErrMarketAlreadyResolved, domain.ConditionAlreadyResolved)
	}
	if endPrice == 0 {
		return domain.Fail(domain.ErrInvalidParameters, domain.ConditionZeroEndPrice)
	}

	resolvedAt := time.Now().UTC()
	market.EndPrice = endPrice
	market.Resolved = true
	market.ResolvedAt = &resolvedAt
	if err := e.markets.Update(ctx, market); err != nil {
		return fmt.Errorf("engine: resolve market %d: %w", marketID, err)
	}
	e.invalidate(ctx, marketID)

	e.record(ctx, domain.EventMarketResolved, map[string]any{
		"market_id": marketID,
		"end_price": endPrice,
		"winner":    string(market.WinningDirection()),
	})
	e.publish(ctx, domain.ChannelMarkets, domain.EventMarketResolved, market)

	e.logger.InfoContext(ctx, "market resolved",
		slog.Uint64("market_id", marketID),
		slog.Uint64("end_price", endPrice),
		slog.String("winner", string(market.WinningDirection())),
	)
	return nil
}
