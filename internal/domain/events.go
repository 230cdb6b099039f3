package domain

import "github.com/ethereum/go-ethereum/common"

// Pub/sub channels carrying engine events.
const (
	ChannelMarkets = "ch:market"
	ChannelStakes  = "ch:stake"
	ChannelClaims  = "ch:claim"
	ChannelAdmin   = "ch:admin"
)

// Event types used in the Event envelope.
const (
	EventMarketCreated   = "market_created"
	EventStakeRecorded   = "stake_recorded"
	EventMarketResolved  = "market_resolved"
	EventWinningsClaimed = "winnings_claimed"
	EventFeesWithdrawn   = "fees_withdrawn"
	EventParamsUpdated   = "params_updated"
)

// Event is the JSON envelope published on the signal bus and forwarded to
// WebSocket clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// StakeRecorded is the payload of a stake_recorded event.
type StakeRecorded struct {
	MarketID  uint64         `json:"market_id"`
	Caller    common.Address `json:"caller"`
	Direction Direction      `json:"direction"`
	Amount    uint64         `json:"amount"`
}

// WinningsClaimed is the payload of a winnings_claimed event.
type WinningsClaimed struct {
	MarketID uint64         `json:"market_id"`
	Caller   common.Address `json:"caller"`
	Payout   uint64         `json:"payout"`
	Fee      uint64         `json:"fee"`
}

// FeesWithdrawn is the payload of a fees_withdrawn event.
type FeesWithdrawn struct {
	Owner  common.Address `json:"owner"`
	Amount uint64         `json:"amount"`
}
