package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/updownmarket/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps an engine error to an HTTP status and renders it.
// The response body carries the external error code; the precise condition,
// when present, travels in a separate field.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrMarketNotFound), errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidPredictionType),
		errors.Is(err, domain.ErrInvalidParameters),
		errors.Is(err, domain.ErrDivisionByZero):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrMarketInactive),
		errors.Is(err, domain.ErrMarketExpired),
		errors.Is(err, domain.ErrMarketAlreadyResolved),
		errors.Is(err, domain.ErrRewardsAlreadyClaimed),
		errors.Is(err, domain.ErrInsufficientFunds):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		writeError(w, status, "internal server error")
		return
	}

	var ce *domain.ConditionError
	if errors.As(err, &ce) {
		writeJSON(w, status, map[string]string{
			"error":     ce.Code.Error(),
			"condition": string(ce.Condition),
		})
		return
	}
	writeError(w, status, err.Error())
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

// pathID extracts a uint64 path parameter using Go 1.22+ built-in routing
// (http.Request.PathValue).
func pathID(r *http.Request, name string) (uint64, error) {
	raw := r.PathValue(name)
	if raw == "" {
		return 0, errors.New("missing " + name)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New(name + " must be a positive integer")
	}
	return id, nil
}

// parseAddress validates and decodes a hex-encoded address field.
func parseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, errors.New("not a valid hex address")
	}
	return common.HexToAddress(raw), nil
}

// decodeBody unmarshals a JSON request body into dst, rejecting unknown
// fields so client typos fail loudly.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
