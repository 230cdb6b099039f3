package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/updownmarket/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
//
// Stake amounts, prices, and block heights are stored as BIGINT; the engine
// treats them as unsigned on the way in and out.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, start_price, end_price, total_up_stake, total_down_stake,
	start_block, end_block, resolved, created_at, resolved_at`

// Insert stores a new market record.
func (s *MarketStore) Insert(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, start_price, end_price, total_up_stake, total_down_stake,
			start_block, end_block, resolved, created_at, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, query,
		int64(m.ID), int64(m.StartPrice), int64(m.EndPrice),
		int64(m.TotalUpStake), int64(m.TotalDownStake),
		int64(m.StartBlock), int64(m.EndBlock),
		m.Resolved, m.CreatedAt, m.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert market %d: %w", m.ID, err)
	}
	return nil
}

// Update replaces the mutable fields of an existing market record.
func (s *MarketStore) Update(ctx context.Context, m domain.Market) error {
	const query = `
		UPDATE markets SET
			end_price        = $2,
			total_up_stake   = $3,
			total_down_stake = $4,
			resolved         = $5,
			resolved_at      = $6
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		int64(m.ID), int64(m.EndPrice),
		int64(m.TotalUpStake), int64(m.TotalDownStake),
		m.Resolved, m.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update market %d: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var id, startPrice, endPrice, up, down, startBlock, endBlock int64
	err := row.Scan(
		&id, &startPrice, &endPrice, &up, &down,
		&startBlock, &endBlock, &m.Resolved, &m.CreatedAt, &m.ResolvedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.ID = uint64(id)
	m.StartPrice = uint64(startPrice)
	m.EndPrice = uint64(endPrice)
	m.TotalUpStake = uint64(up)
	m.TotalDownStake = uint64(down)
	m.StartBlock = uint64(startBlock)
	m.EndBlock = uint64(endBlock)
	return m, nil
}

// Get retrieves a market by its id.
func (s *MarketStore) Get(ctx context.Context, id uint64) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, int64(id))
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %d: %w", id, err)
	}
	return m, nil
}

// List returns markets ordered by id with pagination.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets ORDER BY id`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

// Compile-time interface check.
var _ domain.MarketStore = (*MarketStore)(nil)
