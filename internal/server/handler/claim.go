package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// ClaimService defines the settlement methods the claim handler requires
// from the engine.
type ClaimService interface {
	Claim(ctx context.Context, caller common.Address, marketID uint64) (uint64, error)
	AccountBalance(ctx context.Context, addr common.Address) (uint64, error)
	PoolBalance(ctx context.Context) (uint64, error)
}

// ClaimHandler serves payout claims and balance lookups.
type ClaimHandler struct {
	engine ClaimService
	logger *slog.Logger
}

// NewClaimHandler creates a ClaimHandler.
func NewClaimHandler(engine ClaimService, logger *slog.Logger) *ClaimHandler {
	return &ClaimHandler{
		engine: engine,
		logger: logHandler(logger, "claim"),
	}
}

// claimRequest is the body for claiming winnings.
type claimRequest struct {
	Caller string `json:"caller"`
}

// Claim pays out the caller's winning position in a resolved market.
// POST /api/markets/{id}/claim
func (h *ClaimHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}

	payout, err := h.engine.Claim(r.Context(), caller, id)
	if err != nil {
		h.logger.WarnContext(r.Context(), "claim rejected",
			slog.Uint64("market_id", id),
			slog.String("caller", caller.Hex()),
			slog.String("error", err.Error()),
		)
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"caller":    caller.Hex(),
		"payout":    payout,
	})
}

// GetBalance returns the ledger balance of an address.
// GET /api/balances/{address}
func (h *ClaimHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "address: "+err.Error())
		return
	}

	balance, err := h.engine.AccountBalance(r.Context(), addr)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"address": addr.Hex(),
		"balance": balance,
	})
}

// GetPoolBalance returns the engine's pooled balance: every live stake plus
// fees not yet withdrawn.
// GET /api/pool
func (h *ClaimHandler) GetPoolBalance(w http.ResponseWriter, r *http.Request) {
	pool, err := h.engine.PoolBalance(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"pool_balance": pool})
}
