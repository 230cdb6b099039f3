package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Check is a named dependency probe run on each health request.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// HealthHandler serves the health-check endpoint, reporting the current
// block height alongside per-dependency probe results.
type HealthHandler struct {
	clock  interface {
		BlockNumber(ctx context.Context) (uint64, error)
	}
	checks []Check
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. The checks slice may be empty.
func NewHealthHandler(clock interface {
	BlockNumber(ctx context.Context) (uint64, error)
}, checks []Check, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		clock:  clock,
		checks: checks,
		logger: logHandler(logger, "health"),
	}
}

// HealthCheck responds with overall status, the current block height, and
// the outcome of each dependency probe. Any failing probe degrades the
// overall status but the endpoint still returns 200 so load balancers can
// read the detail.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "ok"

	deps := make(map[string]string, len(h.checks))
	for _, c := range h.checks {
		if err := c.Probe(ctx); err != nil {
			deps[c.Name] = err.Error()
			status = "degraded"
			h.logger.WarnContext(ctx, "health probe failed",
				slog.String("check", c.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		deps[c.Name] = "ok"
	}

	body := map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	if h.clock != nil {
		if height, err := h.clock.BlockNumber(ctx); err == nil {
			body["block_height"] = height
		}
	}

	writeJSON(w, http.StatusOK, body)
}
