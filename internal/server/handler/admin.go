package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/updownmarket/internal/domain"
)

// AdminService defines the owner-gated parameter and treasury methods the
// admin handler requires from the engine.
type AdminService interface {
	Params(ctx context.Context) (domain.EngineParams, error)
	SetOracleAddress(ctx context.Context, caller, oracle common.Address) error
	SetMinimumStake(ctx context.Context, caller common.Address, minimum uint64) error
	SetFeePercentage(ctx context.Context, caller common.Address, fee uint64) error
	WithdrawFees(ctx context.Context, caller common.Address, amount uint64) error
	PoolBalance(ctx context.Context) (uint64, error)
}

// BlockAdvancer moves simulated block height forward. Only the simulation
// clock implements it; in serve mode the advancer is nil and the endpoint
// is rejected.
type BlockAdvancer interface {
	Advance(n uint64) uint64
}

// AdminHandler serves platform parameter updates and fee withdrawal.
type AdminHandler struct {
	engine   AdminService
	advancer BlockAdvancer
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler. advancer may be nil.
func NewAdminHandler(engine AdminService, advancer BlockAdvancer, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		engine:   engine,
		advancer: advancer,
		logger:   logHandler(logger, "admin"),
	}
}

// GetParams returns the current engine parameters and pooled balance.
// GET /api/admin/params
func (h *AdminHandler) GetParams(w http.ResponseWriter, r *http.Request) {
	params, err := h.engine.Params(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	pool, err := h.engine.PoolBalance(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"owner":          params.Owner.Hex(),
		"oracle":         params.Oracle.Hex(),
		"minimum_stake":  params.MinimumStake,
		"fee_percentage": params.FeePercentage,
		"next_market_id": params.NextMarketID,
		"pool_balance":   pool,
	})
}

// setOracleRequest is the body for rotating the oracle address.
type setOracleRequest struct {
	Caller string `json:"caller"`
	Oracle string `json:"oracle"`
}

// SetOracle rotates the oracle address. Rejected when unchanged.
// PUT /api/admin/oracle
func (h *AdminHandler) SetOracle(w http.ResponseWriter, r *http.Request) {
	var req setOracleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}
	oracle, err := parseAddress(req.Oracle)
	if err != nil {
		writeError(w, http.StatusBadRequest, "oracle: "+err.Error())
		return
	}

	if err := h.engine.SetOracleAddress(r.Context(), caller, oracle); err != nil {
		h.logger.WarnContext(r.Context(), "set oracle rejected",
			slog.String("caller", caller.Hex()),
			slog.String("error", err.Error()),
		)
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"oracle": oracle.Hex()})
}

// setMinimumStakeRequest is the body for updating the minimum stake.
type setMinimumStakeRequest struct {
	Caller       string `json:"caller"`
	MinimumStake uint64 `json:"minimum_stake"`
}

// SetMinimumStake updates the minimum stake. Zero is rejected.
// PUT /api/admin/minimum-stake
func (h *AdminHandler) SetMinimumStake(w http.ResponseWriter, r *http.Request) {
	var req setMinimumStakeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}

	if err := h.engine.SetMinimumStake(r.Context(), caller, req.MinimumStake); err != nil {
		h.logger.WarnContext(r.Context(), "set minimum stake rejected",
			slog.String("caller", caller.Hex()),
			slog.String("error", err.Error()),
		)
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"minimum_stake": req.MinimumStake})
}

// setFeeRequest is the body for updating the fee percentage.
type setFeeRequest struct {
	Caller        string `json:"caller"`
	FeePercentage uint64 `json:"fee_percentage"`
}

// SetFeePercentage updates the fee percentage. Values above 100 are
// rejected; zero is allowed.
// PUT /api/admin/fee-percentage
func (h *AdminHandler) SetFeePercentage(w http.ResponseWriter, r *http.Request) {
	var req setFeeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}

	if err := h.engine.SetFeePercentage(r.Context(), caller, req.FeePercentage); err != nil {
		h.logger.WarnContext(r.Context(), "set fee percentage rejected",
			slog.String("caller", caller.Hex()),
			slog.String("error", err.Error()),
		)
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"fee_percentage": req.FeePercentage})
}

// withdrawRequest is the body for withdrawing accumulated fees.
type withdrawRequest struct {
	Caller string `json:"caller"`
	Amount uint64 `json:"amount"`
}

// Withdraw moves funds from the pooled balance to the owner.
// POST /api/admin/withdraw
func (h *AdminHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}

	if err := h.engine.WithdrawFees(r.Context(), caller, req.Amount); err != nil {
		h.logger.WarnContext(r.Context(), "withdraw rejected",
			slog.String("caller", caller.Hex()),
			slog.Uint64("amount", req.Amount),
			slog.String("error", err.Error()),
		)
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"withdrawn": req.Amount})
}

// advanceBlocksRequest is the body for advancing simulated block height.
type advanceBlocksRequest struct {
	Blocks uint64 `json:"blocks"`
}

// AdvanceBlocks moves the simulation clock forward. Only available when the
// server runs against a simulated clock.
// POST /api/admin/blocks/advance
func (h *AdminHandler) AdvanceBlocks(w http.ResponseWriter, r *http.Request) {
	if h.advancer == nil {
		writeError(w, http.StatusConflict, "block advancement requires simulation mode")
		return
	}

	var req advanceBlocksRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Blocks == 0 {
		writeError(w, http.StatusBadRequest, "blocks must be positive")
		return
	}

	height := h.advancer.Advance(req.Blocks)
	h.logger.InfoContext(r.Context(), "blocks advanced",
		slog.Uint64("by", req.Blocks),
		slog.Uint64("height", height),
	)
	writeJSON(w, http.StatusOK, map[string]uint64{"block_height": height})
}
