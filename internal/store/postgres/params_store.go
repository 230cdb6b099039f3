package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/updownmarket/internal/domain"
)

// ParamsStore implements domain.ParamsStore using a single-row table.
type ParamsStore struct {
	pool *pgxpool.Pool
}

// NewParamsStore creates a ParamsStore backed by the given connection pool.
func NewParamsStore(pool *pgxpool.Pool) *ParamsStore {
	return &ParamsStore{pool: pool}
}

// Get returns the engine parameter record, or domain.ErrNotFound before the
// first Put.
func (s *ParamsStore) Get(ctx context.Context) (domain.EngineParams, error) {
	const query = `
		SELECT owner, oracle, minimum_stake, fee_percentage, next_market_id, updated_at
		FROM engine_params WHERE id = 1`

	var p domain.EngineParams
	var owner, oracle string
	var minStake, feePct, nextID int64
	err := s.pool.QueryRow(ctx, query).Scan(
		&owner, &oracle, &minStake, &feePct, &nextID, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.EngineParams{}, domain.ErrNotFound
		}
		return domain.EngineParams{}, fmt.Errorf("postgres: get params: %w", err)
	}
	p.Owner = common.HexToAddress(owner)
	p.Oracle = common.HexToAddress(oracle)
	p.MinimumStake = uint64(minStake)
	p.FeePercentage = uint64(feePct)
	p.NextMarketID = uint64(nextID)
	return p, nil
}

// Put replaces the engine parameter record.
func (s *ParamsStore) Put(ctx context.Context, p domain.EngineParams) error {
	const query = `
		INSERT INTO engine_params (
			id, owner, oracle, minimum_stake, fee_percentage, next_market_id, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			owner          = EXCLUDED.owner,
			oracle         = EXCLUDED.oracle,
			minimum_stake  = EXCLUDED.minimum_stake,
			fee_percentage = EXCLUDED.fee_percentage,
			next_market_id = EXCLUDED.next_market_id,
			updated_at     = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query,
		addrKey(p.Owner), addrKey(p.Oracle),
		int64(p.MinimumStake), int64(p.FeePercentage), int64(p.NextMarketID),
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: put params: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ParamsStore = (*ParamsStore)(nil)
