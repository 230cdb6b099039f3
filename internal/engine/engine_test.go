package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/updownmarket/internal/chain"
	"github.com/alanyoungcy/updownmarket/internal/domain"
	"github.com/alanyoungcy/updownmarket/internal/ledger"
	"github.com/alanyoungcy/updownmarket/internal/store/memory"
)

var (
	owner   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	oracle  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	alice   = common.HexToAddress("0x3333333333333333333333333333333333333333")
	bob     = common.HexToAddress("0x4444444444444444444444444444444444444444")
	carol   = common.HexToAddress("0x5555555555555555555555555555555555555555")
	account = common.HexToAddress("0x0000000000000000000000000000000000000001")
)

const (
	minStake = uint64(1_000_000)
	feePct   = uint64(2)
)

type fixture struct {
	eng    *Engine
	clock  *chain.SimClock
	ledger *ledger.Ledger
	ctx    context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	clock := chain.NewSimClock(1)
	led := ledger.New(map[common.Address]uint64{
		alice: 100_000_000,
		bob:   100_000_000,
		carol: 100_000_000,
	})

	eng := New(Deps{
		Markets:   memory.NewMarketStore(),
		Positions: memory.NewPositionStore(),
		Params:    memory.NewParamsStore(),
		Audit:     memory.NewAuditStore(),
		Ledger:    led,
		Clock:     clock,
		Account:   account,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := eng.Bootstrap(ctx, domain.EngineParams{
		Owner:         owner,
		Oracle:        oracle,
		MinimumStake:  minStake,
		FeePercentage: feePct,
	}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	return &fixture{eng: eng, clock: clock, ledger: led, ctx: ctx}
}

// openMarket creates a market with window [10, 20) and moves the clock into
// the open window.
func (f *fixture) openMarket(t *testing.T, startPrice uint64) uint64 {
	t.Helper()
	id, err := f.eng.CreateMarket(f.ctx, owner, startPrice, 10, 20)
	if err != nil {
		t.Fatalf("create market: %v", err)
	}
	f.clock.Set(10)
	return id
}

func (f *fixture) balance(t *testing.T, addr common.Address) uint64 {
	t.Helper()
	b, err := f.ledger.Balance(f.ctx, addr)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}

func wantFailure(t *testing.T, err, code error, cond domain.Condition) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v (%s), got nil", code, cond)
	}
	if !errors.Is(err, code) {
		t.Fatalf("expected code %v, got %v", code, err)
	}
	if got := domain.ConditionOf(err); got != cond {
		t.Fatalf("expected condition %q, got %q", cond, got)
	}
}

func TestCreateMarket(t *testing.T) {
	f := newFixture(t)

	id, err := f.eng.CreateMarket(f.ctx, owner, 50_000, 10, 20)
	if err != nil {
		t.Fatalf("create market: %v", err)
	}
	if id != 1 {
		t.Fatalf("first market id = %d, want 1", id)
	}

	// Ids are sequential and never reused.
	id2, err := f.eng.CreateMarket(f.ctx, owner, 60_000, 30, 40)
	if err != nil {
		t.Fatalf("create second market: %v", err)
	}
	if id2 != 2 {
		t.Fatalf("second market id = %d, want 2", id2)
	}

	m, err := f.eng.GetMarket(f.ctx, id)
	if err != nil {
		t.Fatalf("get market: %v", err)
	}
	if m.StartPrice != 50_000 || m.StartBlock != 10 || m.EndBlock != 20 {
		t.Fatalf("market fields = %+v", m)
	}
	if m.Resolved || m.TotalUpStake != 0 || m.TotalDownStake != 0 {
		t.Fatalf("new market should be unresolved with zero totals: %+v", m)
	}
}

func TestCreateMarketValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		caller     common.Address
		startPrice uint64
		start, end uint64
		code       error
		cond       domain.Condition
	}{
		{"not owner", alice, 50_000, 10, 20, domain.ErrUnauthorized, domain.ConditionNotOwner},
		{"end equals start", owner, 50_000, 10, 10, domain.ErrInvalidParameters, domain.ConditionBadWindow},
		{"end before start", owner, 50_000, 20, 10, domain.ErrInvalidParameters, domain.ConditionBadWindow},
		{"zero start price", owner, 0, 10, 20, domain.ErrInvalidParameters, domain.ConditionZeroStartPrice},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.eng.CreateMarket(f.ctx, tc.caller, tc.startPrice, tc.start, tc.end)
			wantFailure(t, err, tc.code, tc.cond)
		})
	}
}

func TestRecordStake(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t, 50_000)

	if err := f.eng.RecordStake(f.ctx, alice, id, domain.DirectionUp, 5_000_000); err != nil {
		t.Fatalf("record stake: %v", err)
	}

	// Funds moved into the pool.
	if got := f.balance(t, alice); got != 95_000_000 {
		t.Fatalf("alice balance = %d, want 95000000", got)
	}
	if got := f.balance(t, account); got != 5_000_000 {
		t.Fatalf("pool balance = %d, want 5000000", got)
	}

	m, err := f.eng.GetMarket(f.ctx, id)
	if err != nil {
		t.Fatalf("get market: %v", err)
	}
	if m.TotalUpStake != 5_000_000 || m.TotalDownStake != 0 {
		t.Fatalf("totals = up %d down %d", m.TotalUpStake, m.TotalDownStake)
	}

	pos, err := f.eng.GetPosition(f.ctx, id, alice)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if pos.Direction != domain.DirectionUp || pos.Stake != 5_000_000 || pos.Claimed {
		t.Fatalf("position = %+v", pos)
	}
}

func TestRecordStakeValidation(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t, 50_000)

	tests := []struct {
		name      string
		marketID  uint64
		direction domain.Direction
		amount    uint64
		code      error
		cond      domain.Condition
	}{
		{"unknown market", 99, domain.DirectionUp, 2_000_000, domain.ErrMarketNotFound, domain.ConditionNoSuchMarket},
		{"bad direction", id, domain.Direction("sideways"), 2_000_000, domain.ErrInvalidPredictionType, domain.ConditionBadDirection},
		{"below minimum", id, domain.DirectionUp, minStake - 1, domain.ErrInvalidPredictionType, domain.ConditionStakeBelowMin},
		{"balance too low", id, domain.DirectionUp, 200_000_000, domain.ErrInsufficientFunds, domain.ConditionBalanceTooLow},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := f.eng.RecordStake(f.ctx, alice, tc.marketID, tc.direction, tc.amount)
			wantFailure(t, err, tc.code, tc.cond)
		})
	}

	// Before open: needs its own fixture since SimClock never rewinds.
	t.Run("before open", func(t *testing.T) {
		f2 := newFixture(t)
		id2, err := f2.eng.CreateMarket(f2.ctx, owner, 50_000, 10, 20)
		if err != nil {
			t.Fatalf("create market: %v", err)
		}
		err = f2.eng.RecordStake(f2.ctx, alice, id2, domain.DirectionUp, 2_000_000)
		wantFailure(t, err, domain.ErrMarketExpired, domain.ConditionNotYetOpen)
	})

	// Window close boundary: the end block itself is outside the window.
	f.clock.Set(19)
	if err := f.eng.RecordStake(f.ctx, alice, id, domain.DirectionUp, 2_000_000); err != nil {
		t.Fatalf("stake at last open block: %v", err)
	}
	f.clock.Set(20)
	err := f.eng.RecordStake(f.ctx, bob, id, domain.DirectionUp, 2_000_000)
	wantFailure(t, err, domain.ErrMarketExpired, domain.ConditionAlreadyClosed)
}

func TestRecordStakeExactMinimum(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t, 50_000)

	if err := f.eng.RecordStake(f.ctx, alice, id, domain.DirectionDown, minStake); err != nil {
		t.Fatalf("stake at exact minimum should pass: %v", err)
	}
}

// A repeat stake replaces the caller's position but the market totals keep
// both contributions.
func TestRecordStakeOverwrite(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t, 50_000)

	if err := f.eng.RecordStake(f.ctx, alice, id, domain.DirectionUp, 2_000_000); err != nil {
		t.Fatalf("first stake: %v", err)
	}
	if err := f.eng.RecordStake(f.ctx, alice, id, domain.DirectionDown, 3_000_000); err != nil {
		t.Fatalf("second stake: %v", err)
	}

	pos, err := f.eng.GetPosition(f.ctx, id, alice)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if pos.Direction != domain.DirectionDown || pos.Stake != 3_000_000 {
		t.Fatalf("position after overwrite = %+v, want down/3000000", pos)
	}

	m, err := f.eng.GetMarket(f.ctx, id)
	if err != nil {
		t.Fatalf("get market: %v", err)
	}
	if m.TotalUpStake != 2_000_000 || m.TotalDownStake != 3_000_000 {
		t.Fatalf("totals after overwrite = up %d down %d, want 2000000/3000000",
			m.TotalUpStake, m.TotalDownStake)
	}

	// Both stakes were debited.
	if got := f.balance(t, alice); got != 95_000_000 {
		t.Fatalf("alice balance = %d, want 95000000", got)
	}
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t, 50_000)

	// Too early: the window is still open.
	f.clock.Set(19)
	err := f.eng.Resolve(f.ctx, oracle, id, 60_000)
	wantFailure(t, err, domain.ErrMarketExpired, domain.ConditionNotYetClosed)

	f.clock.Set(20)

	// Wrong caller.
	err = f.eng.Resolve(f.ctx, owner, id, 60_000)
	wantFailure(t, err, domain.ErrUnauthorized, domain.ConditionNotOracle)

	// Zero end price.
	err = f.eng.Resolve(f.ctx, oracle, id, 0)
	wantFailure(t, err, domain.ErrInvalidParameters, domain.ConditionZeroEndPrice)

	// Missing market.
	err = f.eng.Resolve(f.ctx, oracle, 99, 60_000)
	wantFailure(t, err, domain.ErrMarketNotFound, domain.ConditionNoSuchMarket)

	// Success at exactly the end block.
	if err := f.eng.Resolve(f.ctx, oracle, id, 60_000); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	m, err := f.eng.GetMarket(f.ctx, id)
	if err != nil {
		t.Fatalf("get market: %v", err)
	}
	if !m.Resolved || m.EndPrice != 60_000 || m.ResolvedAt == nil {
		t.Fatalf("market after resolve = %+v", m)
	}
	if m.WinningDirection() != domain.DirectionUp {
		t.Fatalf("winner = %s, want up", m.WinningDirection())
	}

	// Only once.
	err = f.eng.Resolve(f.ctx, oracle, id, 70_000)
	wantFailure(t, err, domain.ErrMarketAlreadyResolved, domain.ConditionAlreadyResolved)
}

// An unchanged end price resolves in favor of down.
func TestResolveTieFavorsDown(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t, 50_000)

	if err := f.eng.RecordStake(f.ctx, alice, id, domain.DirectionUp, 2_000_000); err != nil {
		t.Fatalf("stake up: %v", err)
	}
	if err := f.eng.RecordStake(f.ctx, bob, id, domain.DirectionDown, 2_000_000); err != nil {
		t.Fatalf("stake down: %v", err)
	}

	f.clock.Set(20)
	if err := f.eng.Resolve(f.ctx, oracle, id, 50_000); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if _, err := f.eng.Claim(f.ctx, alice, id); !errors.Is(err, domain.ErrInvalidPredictionType) {
		t.Fatalf("up staker claim on tie: got %v, want %v", err, domain.ErrInvalidPredictionType)
	}
	if _, err := f.eng.Claim(f.ctx, bob, id); err != nil {
		t.Fatalf("down staker claim on tie: %v", err)
	}
}

// The reference scenario: 5M up vs 3M down, price moves up, 2% fee.
func TestClaimWorkedScenario(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t, 50_000)

	if err := f.eng.RecordStake(f.ctx, alice, id, domain.DirectionUp, 5_000_000); err != nil {
		t.Fatalf("alice stake: %v", err)
	}
	if err := f.eng.RecordStake(f.ctx, bob, id, domain.DirectionDown, 3_000_000); err != nil {
		t.Fatalf("bob stake: %v", err)
	}

	// Claim before resolution is rejected.
	_, err := f.eng.Claim(f.ctx, alice, id)
	wantFailure(t, err, domain.ErrMarketInactive, domain.ConditionUnresolved)

	f.clock.Set(20)
	if err := f.eng.Resolve(f.ctx, oracle, id, 60_000); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// gross = floor(5M * 8M / 5M) = 8,000,000
	// fee   = floor(8M * 2 / 100) = 160,000
	// net   = 7,840,000
	net, err := f.eng.Claim(f.ctx, alice, id)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if net != 7_840_000 {
		t.Fatalf("net payout = %d, want 7840000", net)
	}
	if got := f.balance(t, alice); got != 95_000_000+7_840_000 {
		t.Fatalf("alice balance = %d, want %d", got, 95_000_000+7_840_000)
	}
	if got := f.balance(t, owner); got != 160_000 {
		t.Fatalf("owner fee balance = %d, want 160000", got)
	}
	if got := f.balance(t, account); got != 0 {
		t.Fatalf("pool balance = %d, want 0", got)
	}

	// The loser cannot claim.
	_, err = f.eng.Claim(f.ctx, bob, id)
	wantFailure(t, err, domain.ErrInvalidPredictionType, domain.ConditionNotWinner)

	// Exactly once.
	_, err = f.eng.Claim(f.ctx, alice, id)
	wantFailure(t, err, domain.ErrRewardsAlreadyClaimed, domain.ConditionAlreadyClaimed)

	pos, err := f.eng.GetPosition(f.ctx, id, alice)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if !pos.Claimed || pos.ClaimedAt == nil {
		t.Fatalf("position not marked claimed: %+v", pos)
	}
}

func TestClaimWithoutPosition(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t, 50_000)

	if err := f.eng.RecordStake(f.ctx, alice, id, domain.DirectionUp, 2_000_000); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.clock.Set(20)
	if err := f.eng.Resolve(f.ctx, oracle, id, 60_000); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// No position reports the market-not-found code.
	_, err := f.eng.Claim(f.ctx, carol, id)
	wantFailure(t, err, domain.ErrMarketNotFound, domain.ConditionNoPosition)
}

// Floor division leaves dust in the pool; payouts plus fees never exceed the
// staked total.
func TestClaimRoundingAndConservation(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t, 50_000)

	if err := f.eng.RecordStake(f.ctx, alice, id, domain.DirectionUp, 1_000_000); err != nil {
		t.Fatalf("alice stake: %v", err)
	}
	if err := f.eng.RecordStake(f.ctx, carol, id, domain.DirectionUp, 2_000_000); err != nil {
		t.Fatalf("carol stake: %v", err)
	}
	if err := f.eng.RecordStake(f.ctx, bob, id, domain.DirectionDown, 1_000_000); err != nil {
		t.Fatalf("bob stake: %v", err)
	}

	f.clock.Set(20)
	if err := f.eng.Resolve(f.ctx, oracle, id, 60_000); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// total 4M, winning 3M.
	// alice: gross = floor(1M*4M/3M) = 1,333,333  fee = 26,666  net = 1,306,667
	// carol: gross = floor(2M*4M/3M) = 2,666,666  fee = 53,333  net = 2,613,333
	netA, err := f.eng.Claim(f.ctx, alice, id)
	if err != nil {
		t.Fatalf("alice claim: %v", err)
	}
	if netA != 1_306_667 {
		t.Fatalf("alice net = %d, want 1306667", netA)
	}
	netC, err := f.eng.Claim(f.ctx, carol, id)
	if err != nil {
		t.Fatalf("carol claim: %v", err)
	}
	if netC != 2_613_333 {
		t.Fatalf("carol net = %d, want 2613333", netC)
	}

	// Dust of 1 remains pooled: 4,000,000 - 1,333,333 - 2,666,666.
	if got := f.balance(t, account); got != 1 {
		t.Fatalf("pool dust = %d, want 1", got)
	}
	if got := f.balance(t, owner); got != 26_666+53_333 {
		t.Fatalf("owner fees = %d, want %d", got, 26_666+53_333)
	}
}

func TestPayoutArithmetic(t *testing.T) {
	tests := []struct {
		name                       string
		stake, total, winning, fee uint64
		wantGross, wantFee         uint64
	}{
		{"reference", 5_000_000, 8_000_000, 5_000_000, 2, 8_000_000, 160_000},
		{"rounding down", 1_000_000, 4_000_000, 3_000_000, 2, 1_333_333, 26_666},
		{"zero fee", 1_000_000, 2_000_000, 1_000_000, 0, 2_000_000, 0},
		{"full fee", 1_000_000, 2_000_000, 1_000_000, 100, 2_000_000, 2_000_000},
		// stake * total overflows 64 bits; the quotient does not.
		{"wide intermediate", 1 << 62, 1 << 63, 1 << 62, 2, 1 << 63, (1 << 63) / 50},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gross, fee := payout(tc.stake, tc.total, tc.winning, tc.fee)
			if gross != tc.wantGross || fee != tc.wantFee {
				t.Fatalf("payout(%d,%d,%d,%d) = (%d,%d), want (%d,%d)",
					tc.stake, tc.total, tc.winning, tc.fee, gross, fee, tc.wantGross, tc.wantFee)
			}
		})
	}
}

func TestWithdrawFees(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t, 50_000)

	if err := f.eng.RecordStake(f.ctx, alice, id, domain.DirectionUp, 2_000_000); err != nil {
		t.Fatalf("stake: %v", err)
	}

	err := f.eng.WithdrawFees(f.ctx, alice, 1)
	wantFailure(t, err, domain.ErrUnauthorized, domain.ConditionNotOwner)

	err = f.eng.WithdrawFees(f.ctx, owner, 2_000_001)
	wantFailure(t, err, domain.ErrInsufficientFunds, domain.ConditionPoolShort)

	if err := f.eng.WithdrawFees(f.ctx, owner, 500_000); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := f.balance(t, owner); got != 500_000 {
		t.Fatalf("owner balance = %d, want 500000", got)
	}
	if got := f.balance(t, account); got != 1_500_000 {
		t.Fatalf("pool balance = %d, want 1500000", got)
	}
}

func TestAdminSetters(t *testing.T) {
	f := newFixture(t)
	newOracle := common.HexToAddress("0x6666666666666666666666666666666666666666")

	err := f.eng.SetOracleAddress(f.ctx, alice, newOracle)
	wantFailure(t, err, domain.ErrUnauthorized, domain.ConditionNotOwner)

	err = f.eng.SetOracleAddress(f.ctx, owner, oracle)
	wantFailure(t, err, domain.ErrInvalidParameters, domain.ConditionSameOracle)

	if err := f.eng.SetOracleAddress(f.ctx, owner, newOracle); err != nil {
		t.Fatalf("set oracle: %v", err)
	}

	err = f.eng.SetMinimumStake(f.ctx, owner, 0)
	wantFailure(t, err, domain.ErrInvalidParameters, domain.ConditionZeroMinStake)

	if err := f.eng.SetMinimumStake(f.ctx, owner, 5_000_000); err != nil {
		t.Fatalf("set minimum stake: %v", err)
	}

	err = f.eng.SetFeePercentage(f.ctx, owner, 101)
	wantFailure(t, err, domain.ErrInvalidParameters, domain.ConditionFeeOutOfRange)

	if err := f.eng.SetFeePercentage(f.ctx, owner, 0); err != nil {
		t.Fatalf("set fee percentage to zero: %v", err)
	}

	params, err := f.eng.Params(f.ctx)
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.Oracle != newOracle || params.MinimumStake != 5_000_000 || params.FeePercentage != 0 {
		t.Fatalf("params after updates = %+v", params)
	}

	// The rotated-out oracle loses resolve rights.
	id, err := f.eng.CreateMarket(f.ctx, owner, 50_000, 1, 2)
	if err != nil {
		t.Fatalf("create market: %v", err)
	}
	f.clock.Set(2)
	err = f.eng.Resolve(f.ctx, oracle, id, 60_000)
	wantFailure(t, err, domain.ErrUnauthorized, domain.ConditionNotOracle)
	if err := f.eng.Resolve(f.ctx, newOracle, id, 60_000); err != nil {
		t.Fatalf("resolve with new oracle: %v", err)
	}
}

func TestBootstrapIdempotent(t *testing.T) {
	f := newFixture(t)

	if err := f.eng.SetMinimumStake(f.ctx, owner, 7_000_000); err != nil {
		t.Fatalf("set minimum stake: %v", err)
	}

	// A second bootstrap must not clobber live parameters.
	if err := f.eng.Bootstrap(f.ctx, domain.EngineParams{
		Owner:         owner,
		Oracle:        oracle,
		MinimumStake:  minStake,
		FeePercentage: feePct,
	}); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}

	params, err := f.eng.Params(f.ctx)
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.MinimumStake != 7_000_000 {
		t.Fatalf("minimum stake = %d, want 7000000", params.MinimumStake)
	}
}

func TestListAndCountMarkets(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		if _, err := f.eng.CreateMarket(f.ctx, owner, 50_000, 10, 20); err != nil {
			t.Fatalf("create market %d: %v", i, err)
		}
	}

	markets, err := f.eng.ListMarkets(f.ctx, domain.ListOpts{Limit: 2})
	if err != nil {
		t.Fatalf("list markets: %v", err)
	}
	if len(markets) != 2 || markets[0].ID != 1 || markets[1].ID != 2 {
		t.Fatalf("page 1 = %+v", markets)
	}

	markets, err = f.eng.ListMarkets(f.ctx, domain.ListOpts{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("list markets page 2: %v", err)
	}
	if len(markets) != 1 || markets[0].ID != 3 {
		t.Fatalf("page 2 = %+v", markets)
	}

	total, err := f.eng.CountMarkets(f.ctx)
	if err != nil {
		t.Fatalf("count markets: %v", err)
	}
	if total != 3 {
		t.Fatalf("count = %d, want 3", total)
	}
}

// A failed stake leaves every piece of state untouched.
func TestFailedStakeLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t, 50_000)

	err := f.eng.RecordStake(f.ctx, alice, id, domain.DirectionUp, minStake-1)
	wantFailure(t, err, domain.ErrInvalidPredictionType, domain.ConditionStakeBelowMin)

	if got := f.balance(t, alice); got != 100_000_000 {
		t.Fatalf("alice balance changed: %d", got)
	}
	if got := f.balance(t, account); got != 0 {
		t.Fatalf("pool balance changed: %d", got)
	}
	m, err := f.eng.GetMarket(f.ctx, id)
	if err != nil {
		t.Fatalf("get market: %v", err)
	}
	if m.TotalUpStake != 0 || m.TotalDownStake != 0 {
		t.Fatalf("totals changed: %+v", m)
	}
	if _, err := f.eng.GetPosition(f.ctx, id, alice); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("position should not exist, got %v", err)
	}
}
