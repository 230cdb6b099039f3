package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EngineParams is the process-wide engine configuration record. It is set at
// deployment and mutable only through the owner-controlled admin operations.
// Changes apply to markets created afterwards; in-flight markets already hold
// their own frozen timing and price fields.
type EngineParams struct {
	Owner         common.Address
	Oracle        common.Address
	MinimumStake  uint64
	FeePercentage uint64 // percentage of gross winnings, 0-100 inclusive
	NextMarketID  uint64 // monotonic, never reused
	UpdatedAt     time.Time
}
