package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Position is a single participant's directional stake within one market.
// There is at most one position per (market, participant) pair: a repeat
// stake from the same participant overwrites the previous position. The
// overwritten stake is NOT subtracted from the market's directional totals,
// so totals can diverge from the sum of live positions. This reproduces the
// observed behavior of the contract this engine settles for; see DESIGN.md.
type Position struct {
	MarketID  uint64         `json:"market_id"`
	Owner     common.Address `json:"owner"`
	Direction Direction      `json:"direction"` // fixed at creation
	Stake     uint64         `json:"stake"`     // fixed at creation
	Claimed   bool           `json:"claimed"`   // false until a successful claim, then permanently true
	CreatedAt time.Time      `json:"created_at"`
	ClaimedAt *time.Time     `json:"claimed_at,omitempty"`
}
