package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/updownmarket/internal/domain"
)

// Params returns the current engine parameter record.
func (e *Engine) Params(ctx context.Context) (domain.EngineParams, error) {
	return e.loadParams(ctx)
}

// SetOracleAddress replaces the configured oracle identity. The new address
// must differ from the current one.
func (e *Engine) SetOracleAddress(ctx context.Context, caller, oracle common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	params, err := e.loadParams(ctx)
	if err != nil {
		return err
	}
	if caller != params.Owner {
		return domain.Fail(domain.ErrUnauthorized, domain.ConditionNotOwner)
	}
	if oracle == params.Oracle {
		return domain.Fail(domain.ErrInvalidParameters, domain.ConditionSameOracle)
	}

	params.Oracle = oracle
	return e.putParams(ctx, params, "oracle", oracle.Hex())
}

// SetMinimumStake replaces the minimum stake threshold. Zero is rejected.
func (e *Engine) SetMinimumStake(ctx context.Context, caller common.Address, minimum uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	params, err := e.loadParams(ctx)
	if err != nil {
		return err
	}
	if caller != params.Owner {
		return domain.Fail(domain.ErrUnauthorized, domain.ConditionNotOwner)
	}
	if minimum == 0 {
		return domain.Fail(domain.ErrInvalidParameters, domain.ConditionZeroMinStake)
	}

	params.MinimumStake = minimum
	return e.putParams(ctx, params, "minimum_stake", minimum)
}

// SetFeePercentage replaces the fee rate, expressed as a percentage of gross
// winnings, 0-100 inclusive.
func (e *Engine) SetFeePercentage(ctx context.Context, caller common.Address, fee uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	params, err := e.loadParams(ctx)
	if err != nil {
		return err
	}
	if caller != params.Owner {
		return domain.Fail(domain.ErrUnauthorized, domain.ConditionNotOwner)
	}
	if fee > 100 {
		return domain.Fail(domain.ErrInvalidParameters, domain.ConditionFeeOutOfRange)
	}

	params.FeePercentage = fee
	return e.putParams(ctx, params, "fee_percentage", fee)
}

// WithdrawFees transfers up to the current pooled balance to the owner.
// Market and position records are never touched.
func (e *Engine) WithdrawFees(ctx context.Context, caller common.Address, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	params, err := e.loadParams(ctx)
	if err != nil {
		return err
	}
	if caller != params.Owner {
		return domain.Fail(domain.ErrUnauthorized, domain.ConditionNotOwner)
	}

	pool, err := e.ledger.Balance(ctx, e.account)
	if err != nil {
		return fmt.Errorf("engine: read pooled balance: %w", err)
	}
	if amount > pool {
		return domain.Fail(domain.ErrInsufficientFunds, domain.ConditionPoolShort)
	}

	if err := e.ledger.Transfer(ctx, e.account, params.Owner, amount); err != nil {
		return fmt.Errorf("engine: withdraw fees: %w", err)
	}

	e.record(ctx, domain.EventFeesWithdrawn, map[string]any{
		"owner":  params.Owner.Hex(),
		"amount": amount,
	})
	e.publish(ctx, domain.ChannelAdmin, domain.EventFeesWithdrawn, domain.FeesWithdrawn{
		Owner:  params.Owner,
		Amount: amount,
	})

	e.logger.InfoContext(ctx, "fees withdrawn",
		slog.String("owner", params.Owner.Hex()),
		slog.Uint64("amount", amount),
	)
	return nil
}

// putParams persists an updated parameter record and emits the audit entry
// and event for the changed field.
func (e *Engine) putParams(ctx context.Context, params domain.EngineParams, field string, value any) error {
	params.UpdatedAt = time.Now().UTC()
	if err := e.params.Put(ctx, params); err != nil {
		return fmt.Errorf("engine: update params: %w", err)
	}

	e.record(ctx, domain.EventParamsUpdated, map[string]any{field: value})
	e.publish(ctx, domain.ChannelAdmin, domain.EventParamsUpdated, map[string]any{field: value})

	e.logger.InfoContext(ctx, "engine params updated",
		slog.String("field", field),
		slog.Any("value", value),
	)
	return nil
}
