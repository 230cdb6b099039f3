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

// PositionStore implements domain.PositionStore using PostgreSQL. Owner
// addresses are stored as lowercase hex text.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PositionStore backed by the given connection
// pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionCols = `market_id, owner, direction, stake, claimed, created_at, claimed_at`

// Upsert inserts or overwrites the position for (market, owner).
func (s *PositionStore) Upsert(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			market_id, owner, direction, stake, claimed, created_at, claimed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (market_id, owner) DO UPDATE SET
			direction  = EXCLUDED.direction,
			stake      = EXCLUDED.stake,
			claimed    = EXCLUDED.claimed,
			created_at = EXCLUDED.created_at,
			claimed_at = EXCLUDED.claimed_at`

	_, err := s.pool.Exec(ctx, query,
		int64(p.MarketID), addrKey(p.Owner), string(p.Direction),
		int64(p.Stake), p.Claimed, p.CreatedAt, p.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %d/%s: %w", p.MarketID, p.Owner, err)
	}
	return nil
}

// Get retrieves the position for (market, owner).
func (s *PositionStore) Get(ctx context.Context, marketID uint64, owner common.Address) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionCols+` FROM positions WHERE market_id = $1 AND owner = $2`,
		int64(marketID), addrKey(owner))
	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %d/%s: %w", marketID, owner, err)
	}
	return p, nil
}

// ListByMarket returns every live position in a market, ordered by owner.
func (s *PositionStore) ListByMarket(ctx context.Context, marketID uint64) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionCols+` FROM positions WHERE market_id = $1 ORDER BY owner`,
		int64(marketID))
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions for market %d: %w", marketID, err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list positions rows: %w", err)
	}
	return positions, nil
}

// scanPosition scans a single position row into a domain.Position.
func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var marketID, stake int64
	var owner, direction string
	err := row.Scan(&marketID, &owner, &direction, &stake, &p.Claimed, &p.CreatedAt, &p.ClaimedAt)
	if err != nil {
		return domain.Position{}, err
	}
	p.MarketID = uint64(marketID)
	p.Owner = common.HexToAddress(owner)
	p.Direction = domain.Direction(direction)
	p.Stake = uint64(stake)
	return p, nil
}

// addrKey normalizes an address for use as a key column.
func addrKey(addr common.Address) string {
	return common.Bytes2Hex(addr.Bytes())
}

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)
