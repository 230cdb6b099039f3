package domain

import (
	"errors"
	"fmt"
)

// Externally reported error codes. The settlement engine this reproduces
// overloads several of them: ErrInvalidPredictionType covers a malformed
// direction, a sub-minimum stake, and "not on the winning side", and
// ErrMarketExpired covers both "too early" and "too late". The overload is
// preserved as observable behavior; the precise condition travels alongside
// as a ConditionError so callers and tests can still tell them apart.
var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrMarketNotFound        = errors.New("market not found")
	ErrInvalidPredictionType = errors.New("invalid prediction type")
	ErrMarketInactive        = errors.New("market inactive")
	ErrRewardsAlreadyClaimed = errors.New("rewards already claimed")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInvalidParameters     = errors.New("invalid parameters")
	ErrMarketExpired         = errors.New("market expired")
	ErrMarketAlreadyResolved = errors.New("market already resolved")
	ErrDivisionByZero        = errors.New("division by zero")

	// Infrastructure-level sentinels.
	ErrNotFound = errors.New("not found")
	ErrLockHeld = errors.New("lock already held")
)

// Condition identifies the precise rule violation behind an external error
// code.
type Condition string

const (
	ConditionNotOwner        Condition = "caller is not the platform owner"
	ConditionNotOracle       Condition = "caller is not the configured oracle"
	ConditionNoSuchMarket    Condition = "no market with that id"
	ConditionNoPosition      Condition = "caller holds no position in this market"
	ConditionBadWindow       Condition = "end block must be after start block"
	ConditionZeroStartPrice  Condition = "start price must be positive"
	ConditionZeroEndPrice    Condition = "end price must be positive"
	ConditionNotYetOpen      Condition = "market has not opened yet"
	ConditionAlreadyClosed   Condition = "market window has closed"
	ConditionNotYetClosed    Condition = "market window is still open"
	ConditionBadDirection    Condition = "direction must be up or down"
	ConditionStakeBelowMin   Condition = "stake below the configured minimum"
	ConditionBalanceTooLow   Condition = "caller balance is too low"
	ConditionNotWinner       Condition = "position is not on the winning side"
	ConditionUnresolved      Condition = "market is not resolved yet"
	ConditionAlreadyClaimed  Condition = "winnings were already claimed"
	ConditionAlreadyResolved Condition = "market was already resolved"
	ConditionZeroWinningPool Condition = "winning side holds no stake"
	ConditionPoolShort       Condition = "pooled balance cannot cover the payout"
	ConditionSameOracle      Condition = "oracle address is unchanged"
	ConditionZeroMinStake    Condition = "minimum stake must be positive"
	ConditionFeeOutOfRange   Condition = "fee percentage must not exceed 100"
)

// ConditionError pairs an external error code with the internal condition
// that triggered it. errors.Is against the code sentinels keeps working
// through Unwrap.
type ConditionError struct {
	Code      error
	Condition Condition
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("%v: %s", e.Code, e.Condition)
}

func (e *ConditionError) Unwrap() error {
	return e.Code
}

// Fail builds a ConditionError from an external code sentinel and a
// condition tag.
func Fail(code error, cond Condition) error {
	return &ConditionError{Code: code, Condition: cond}
}

// ConditionOf extracts the condition tag from an error chain, or "" when the
// error carries none.
func ConditionOf(err error) Condition {
	var ce *ConditionError
	if errors.As(err, &ce) {
		return ce.Condition
	}
	return ""
}
