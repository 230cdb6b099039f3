package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/updownmarket/internal/domain"
)

// PredictionService defines the stake and position methods the prediction
// handler requires from the engine.
type PredictionService interface {
	RecordStake(ctx context.Context, caller common.Address, marketID uint64, direction domain.Direction, amount uint64) error
	GetPosition(ctx context.Context, marketID uint64, owner common.Address) (domain.Position, error)
}

// PredictionHandler serves stake placement and position lookup endpoints.
type PredictionHandler struct {
	engine PredictionService
	logger *slog.Logger
}

// NewPredictionHandler creates a PredictionHandler.
func NewPredictionHandler(engine PredictionService, logger *slog.Logger) *PredictionHandler {
	return &PredictionHandler{
		engine: engine,
		logger: logHandler(logger, "prediction"),
	}
}

// placePredictionRequest is the body for staking on a market direction.
type placePredictionRequest struct {
	Caller    string `json:"caller"`
	Direction string `json:"direction"`
	Amount    uint64 `json:"amount"`
}

// PlacePrediction stakes funds on a market direction for the caller. A
// repeat stake on the same market replaces the caller's recorded position.
// POST /api/markets/{id}/predictions
func (h *PredictionHandler) PlacePrediction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req placePredictionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}

	direction := domain.Direction(req.Direction)
	if err := h.engine.RecordStake(r.Context(), caller, id, direction, req.Amount); err != nil {
		h.logger.WarnContext(r.Context(), "stake rejected",
			slog.Uint64("market_id", id),
			slog.String("caller", caller.Hex()),
			slog.String("direction", req.Direction),
			slog.Uint64("amount", req.Amount),
			slog.String("error", err.Error()),
		)
		writeEngineError(w, err)
		return
	}

	pos, err := h.engine.GetPosition(r.Context(), id, caller)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pos)
}

// GetPosition returns the caller's position in a market.
// GET /api/markets/{id}/positions/{address}
func (h *PredictionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	owner, err := parseAddress(r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "address: "+err.Error())
		return
	}

	pos, err := h.engine.GetPosition(r.Context(), id, owner)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}
