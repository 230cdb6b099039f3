package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/updownmarket/internal/chain"
	"github.com/alanyoungcy/updownmarket/internal/domain"
	"github.com/alanyoungcy/updownmarket/internal/engine"
	"github.com/alanyoungcy/updownmarket/internal/ledger"
	"github.com/alanyoungcy/updownmarket/internal/store/memory"
)

var (
	testOwner  = common.HexToAddress("0x0000000000000000000000000000000000000010")
	testOracle = common.HexToAddress("0x0000000000000000000000000000000000000020")
	testPool   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	alice      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob        = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

// newTestMux builds the full route table over a real engine backed by
// in-memory stores and a simulated clock, mirroring the server wiring.
func newTestMux(t *testing.T) (*http.ServeMux, *chain.SimClock) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := chain.NewSimClock(1)
	led := ledger.New(map[common.Address]uint64{
		alice: 100_000,
		bob:   100_000,
	})

	eng := engine.New(engine.Deps{
		Markets:   memory.NewMarketStore(),
		Positions: memory.NewPositionStore(),
		Params:    memory.NewParamsStore(),
		Ledger:    led,
		Clock:     clock,
		Account:   testPool,
	}, logger)
	err := eng.Bootstrap(context.Background(), domain.EngineParams{
		Owner:         testOwner,
		Oracle:        testOracle,
		MinimumStake:  1_000,
		FeePercentage: 2,
		UpdatedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	markets := NewMarketHandler(eng, logger)
	predictions := NewPredictionHandler(eng, logger)
	claims := NewClaimHandler(eng, logger)
	admin := NewAdminHandler(eng, clock, logger)
	health := NewHealthHandler(clock, nil, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", health.HealthCheck)
	mux.HandleFunc("POST /api/markets", markets.CreateMarket)
	mux.HandleFunc("GET /api/markets", markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", markets.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/resolve", markets.ResolveMarket)
	mux.HandleFunc("POST /api/markets/{id}/predictions", predictions.PlacePrediction)
	mux.HandleFunc("GET /api/markets/{id}/positions/{address}", predictions.GetPosition)
	mux.HandleFunc("POST /api/markets/{id}/claim", claims.Claim)
	mux.HandleFunc("GET /api/balances/{address}", claims.GetBalance)
	mux.HandleFunc("GET /api/pool", claims.GetPoolBalance)
	mux.HandleFunc("GET /api/admin/params", admin.GetParams)
	mux.HandleFunc("PUT /api/admin/oracle", admin.SetOracle)
	mux.HandleFunc("PUT /api/admin/minimum-stake", admin.SetMinimumStake)
	mux.HandleFunc("PUT /api/admin/fee-percentage", admin.SetFeePercentage)
	mux.HandleFunc("POST /api/admin/withdraw", admin.Withdraw)
	mux.HandleFunc("POST /api/admin/blocks/advance", admin.AdvanceBlocks)
	return mux, clock
}

func do(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

// createMarket opens a market as the owner and returns its id path segment.
func createMarket(t *testing.T, mux *http.ServeMux, startBlock, endBlock uint64) uint64 {
	t.Helper()
	rec := do(t, mux, http.MethodPost, "/api/markets", map[string]any{
		"caller":      testOwner.Hex(),
		"start_price": 100,
		"start_block": startBlock,
		"end_block":   endBlock,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create market: status %d, body %s", rec.Code, rec.Body.String())
	}
	return uint64(decode(t, rec)["market_id"].(float64))
}

func TestHealthEndpoint(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := chain.NewSimClock(5)
	checks := []Check{
		{Name: "postgres", Probe: func(context.Context) error { return nil }},
		{Name: "redis", Probe: func(context.Context) error { return errors.New("connection refused") }},
	}
	h := NewHealthHandler(clock, checks, logger)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "degraded" {
		t.Fatalf("status = %v, want degraded", body["status"])
	}
	if body["block_height"].(float64) != 5 {
		t.Fatalf("block_height = %v, want 5", body["block_height"])
	}
	deps := body["dependencies"].(map[string]any)
	if deps["postgres"] != "ok" || deps["redis"] != "connection refused" {
		t.Fatalf("dependencies = %v", deps)
	}
}

func TestMarketLifecycle(t *testing.T) {
	mux, _ := newTestMux(t)

	id := createMarket(t, mux, 1, 10)
	if id != 1 {
		t.Fatalf("market id = %d, want 1", id)
	}

	// Stake 5000 up for alice and 3000 down for bob.
	rec := do(t, mux, http.MethodPost, "/api/markets/1/predictions", map[string]any{
		"caller": alice.Hex(), "direction": "up", "amount": 5000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("stake up: status %d, body %s", rec.Code, rec.Body.String())
	}
	pos := decode(t, rec)
	if pos["direction"] != "up" || pos["stake"].(float64) != 5000 {
		t.Fatalf("position = %v", pos)
	}

	rec = do(t, mux, http.MethodPost, "/api/markets/1/predictions", map[string]any{
		"caller": bob.Hex(), "direction": "down", "amount": 3000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("stake down: status %d, body %s", rec.Code, rec.Body.String())
	}

	// Staking locked alice's funds.
	rec = do(t, mux, http.MethodGet, "/api/balances/"+alice.Hex(), nil)
	if got := decode(t, rec)["balance"].(float64); got != 95_000 {
		t.Fatalf("alice balance = %v, want 95000", got)
	}

	// The market shows both totals, and the pool holds their sum.
	rec = do(t, mux, http.MethodGet, "/api/markets/1", nil)
	m := decode(t, rec)
	if m["total_up_stake"].(float64) != 5000 || m["total_down_stake"].(float64) != 3000 {
		t.Fatalf("market totals = %v", m)
	}
	rec = do(t, mux, http.MethodGet, "/api/pool", nil)
	if got := decode(t, rec)["pool_balance"].(float64); got != 8000 {
		t.Fatalf("pool balance = %v, want 8000", got)
	}

	// Close the window, then resolve above the start price.
	rec = do(t, mux, http.MethodPost, "/api/admin/blocks/advance", map[string]any{"blocks": 9})
	if rec.Code != http.StatusOK {
		t.Fatalf("advance: status %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decode(t, rec)["block_height"].(float64); got != 10 {
		t.Fatalf("block_height = %v, want 10", got)
	}

	rec = do(t, mux, http.MethodPost, "/api/markets/1/resolve", map[string]any{
		"caller": testOracle.Hex(), "end_price": 150,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve: status %d, body %s", rec.Code, rec.Body.String())
	}
	m = decode(t, rec)
	if m["resolved"] != true || m["end_price"].(float64) != 150 {
		t.Fatalf("resolved market = %v", m)
	}

	// Alice held the whole winning side: gross 8000, 2% fee 160, net 7840.
	rec = do(t, mux, http.MethodPost, "/api/markets/1/claim", map[string]any{"caller": alice.Hex()})
	if rec.Code != http.StatusOK {
		t.Fatalf("claim: status %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decode(t, rec)["payout"].(float64); got != 7840 {
		t.Fatalf("payout = %v, want 7840", got)
	}

	rec = do(t, mux, http.MethodGet, "/api/balances/"+alice.Hex(), nil)
	if got := decode(t, rec)["balance"].(float64); got != 102_840 {
		t.Fatalf("alice balance after claim = %v, want 102840", got)
	}
	rec = do(t, mux, http.MethodGet, "/api/balances/"+testOwner.Hex(), nil)
	if got := decode(t, rec)["balance"].(float64); got != 160 {
		t.Fatalf("owner fee balance = %v, want 160", got)
	}

	// Bob is on the losing side.
	rec = do(t, mux, http.MethodPost, "/api/markets/1/claim", map[string]any{"caller": bob.Hex()})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("losing claim: status %d, body %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["condition"] != string(domain.ConditionNotWinner) {
		t.Fatalf("losing claim condition = %v", body["condition"])
	}

	// The claimed position is flagged.
	rec = do(t, mux, http.MethodGet, "/api/markets/1/positions/"+alice.Hex(), nil)
	pos = decode(t, rec)
	if pos["claimed"] != true {
		t.Fatalf("position = %v", pos)
	}
}

func TestListMarketsEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)
	for i := 0; i < 3; i++ {
		createMarket(t, mux, 1, 10)
	}

	rec := do(t, mux, http.MethodGet, "/api/markets?limit=2&offset=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	body := decode(t, rec)
	if body["total"].(float64) != 3 || body["limit"].(float64) != 2 || body["offset"].(float64) != 1 {
		t.Fatalf("list metadata = %v", body)
	}
	markets := body["markets"].([]any)
	if len(markets) != 2 || markets[0].(map[string]any)["id"].(float64) != 2 {
		t.Fatalf("markets = %v", markets)
	}
}

func TestEngineErrorMapping(t *testing.T) {
	mux, _ := newTestMux(t)
	createMarket(t, mux, 1, 10)

	tests := []struct {
		name          string
		method, path  string
		body          map[string]any
		wantStatus    int
		wantCondition domain.Condition
	}{
		{
			"create by non-owner",
			http.MethodPost, "/api/markets",
			map[string]any{"caller": alice.Hex(), "start_price": 100, "start_block": 1, "end_block": 10},
			http.StatusForbidden, domain.ConditionNotOwner,
		},
		{
			"create with inverted window",
			http.MethodPost, "/api/markets",
			map[string]any{"caller": testOwner.Hex(), "start_price": 100, "start_block": 10, "end_block": 10},
			http.StatusBadRequest, domain.ConditionBadWindow,
		},
		{
			"stake on unknown market",
			http.MethodPost, "/api/markets/99/predictions",
			map[string]any{"caller": alice.Hex(), "direction": "up", "amount": 5000},
			http.StatusNotFound, domain.ConditionNoSuchMarket,
		},
		{
			"stake with bad direction",
			http.MethodPost, "/api/markets/1/predictions",
			map[string]any{"caller": alice.Hex(), "direction": "sideways", "amount": 5000},
			http.StatusBadRequest, domain.ConditionBadDirection,
		},
		{
			"stake below minimum",
			http.MethodPost, "/api/markets/1/predictions",
			map[string]any{"caller": alice.Hex(), "direction": "up", "amount": 999},
			http.StatusBadRequest, domain.ConditionStakeBelowMin,
		},
		{
			"stake beyond balance",
			http.MethodPost, "/api/markets/1/predictions",
			map[string]any{"caller": alice.Hex(), "direction": "up", "amount": 100_001},
			http.StatusConflict, domain.ConditionBalanceTooLow,
		},
		{
			"resolve by non-oracle",
			http.MethodPost, "/api/markets/1/resolve",
			map[string]any{"caller": alice.Hex(), "end_price": 150},
			http.StatusForbidden, domain.ConditionNotOracle,
		},
		{
			"resolve before close",
			http.MethodPost, "/api/markets/1/resolve",
			map[string]any{"caller": testOracle.Hex(), "end_price": 150},
			http.StatusConflict, domain.ConditionNotYetClosed,
		},
		{
			"claim before resolution",
			http.MethodPost, "/api/markets/1/claim",
			map[string]any{"caller": alice.Hex()},
			http.StatusConflict, domain.ConditionUnresolved,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, mux, tc.method, tc.path, tc.body)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.wantStatus, rec.Body.String())
			}
			body := decode(t, rec)
			if body["condition"] != string(tc.wantCondition) {
				t.Fatalf("condition = %v, want %q", body["condition"], tc.wantCondition)
			}
		})
	}
}

func TestRequestValidation(t *testing.T) {
	mux, _ := newTestMux(t)

	// Malformed caller address.
	rec := do(t, mux, http.MethodPost, "/api/markets", map[string]any{
		"caller": "not-an-address", "start_price": 100, "start_block": 1, "end_block": 10,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad address: status %d", rec.Code)
	}

	// Non-numeric id segment.
	rec = do(t, mux, http.MethodGet, "/api/markets/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status %d", rec.Code)
	}

	// Unknown JSON fields are rejected.
	rec = do(t, mux, http.MethodPost, "/api/markets", map[string]any{
		"caller": testOwner.Hex(), "start_price": 100, "start_block": 1, "end_block": 10,
		"surprise": true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: status %d", rec.Code)
	}
}

func TestAdminEndpoints(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/admin/params", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("params: status %d", rec.Code)
	}
	params := decode(t, rec)
	if params["owner"] != testOwner.Hex() || params["oracle"] != testOracle.Hex() {
		t.Fatalf("params = %v", params)
	}
	if params["minimum_stake"].(float64) != 1000 || params["pool_balance"].(float64) != 0 {
		t.Fatalf("params = %v", params)
	}

	// Owner raises the minimum stake.
	rec = do(t, mux, http.MethodPut, "/api/admin/minimum-stake", map[string]any{
		"caller": testOwner.Hex(), "minimum_stake": 2000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("set minimum stake: status %d, body %s", rec.Code, rec.Body.String())
	}
	rec = do(t, mux, http.MethodGet, "/api/admin/params", nil)
	if got := decode(t, rec)["minimum_stake"].(float64); got != 2000 {
		t.Fatalf("minimum_stake = %v, want 2000", got)
	}

	// Fee above 100 percent is rejected.
	rec = do(t, mux, http.MethodPut, "/api/admin/fee-percentage", map[string]any{
		"caller": testOwner.Hex(), "fee_percentage": 101,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("fee 101: status %d", rec.Code)
	}
	if got := decode(t, rec)["condition"]; got != string(domain.ConditionFeeOutOfRange) {
		t.Fatalf("condition = %v", got)
	}

	// Rotating the oracle to its current value is rejected.
	rec = do(t, mux, http.MethodPut, "/api/admin/oracle", map[string]any{
		"caller": testOwner.Hex(), "oracle": testOracle.Hex(),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("same oracle: status %d", rec.Code)
	}

	// Withdrawal is owner-only.
	rec = do(t, mux, http.MethodPost, "/api/admin/withdraw", map[string]any{
		"caller": alice.Hex(), "amount": 100,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("withdraw by non-owner: status %d", rec.Code)
	}

	// Zero-block advancement is rejected.
	rec = do(t, mux, http.MethodPost, "/api/admin/blocks/advance", map[string]any{"blocks": 0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("advance zero: status %d", rec.Code)
	}
}

func TestAdvanceBlocksWithoutSimClock(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	admin := NewAdminHandler(nil, nil, logger)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/blocks/advance",
		bytes.NewReader([]byte(`{"blocks":5}`)))
	rec := httptest.NewRecorder()
	admin.AdvanceBlocks(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}
