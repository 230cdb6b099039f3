// Package domain defines the core types, interfaces, and error taxonomy of
// the up/down prediction market settlement engine.
package domain

import "time"

// Direction is the side of a binary prediction.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Valid reports whether d is one of the two accepted directions.
func (d Direction) Valid() bool {
	return d == DirectionUp || d == DirectionDown
}

// Market is a time-bounded wager on whether an asset's price will be higher
// or lower at expiry than it was at creation. Markets are identified by a
// monotonically increasing integer and are never deleted.
type Market struct {
	ID             uint64     `json:"id"`
	StartPrice     uint64     `json:"start_price"` // anchor price at creation, always > 0
	EndPrice       uint64     `json:"end_price"`   // 0 until resolution
	TotalUpStake   uint64     `json:"total_up_stake"`
	TotalDownStake uint64     `json:"total_down_stake"`
	StartBlock     uint64     `json:"start_block"`
	EndBlock       uint64     `json:"end_block"` // always > StartBlock
	Resolved       bool       `json:"resolved"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// TotalStake returns the full pool collected for this market.
func (m Market) TotalStake() uint64 {
	return m.TotalUpStake + m.TotalDownStake
}

// OpenAt reports whether staking is legal at the given block height. The
// window is inclusive on the low end and exclusive on the high end.
func (m Market) OpenAt(block uint64) bool {
	return block >= m.StartBlock && block < m.EndBlock
}

// WinningDirection returns the side that wins under the final price. Up wins
// only on a strict increase; a tie pays Down.
func (m Market) WinningDirection() Direction {
	if m.EndPrice > m.StartPrice {
		return DirectionUp
	}
	return DirectionDown
}

// WinningStake returns the total staked on the winning side. Only meaningful
// once the market is resolved.
func (m Market) WinningStake() uint64 {
	if m.WinningDirection() == DirectionUp {
		return m.TotalUpStake
	}
	return m.TotalDownStake
}
