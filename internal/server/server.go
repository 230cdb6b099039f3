package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/updownmarket/internal/domain"
	"github.com/alanyoungcy/updownmarket/internal/server/handler"
	"github.com/alanyoungcy/updownmarket/internal/server/middleware"
	"github.com/alanyoungcy/updownmarket/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit requests per RateWindow per client IP. Zero disables
	// rate limiting even when a limiter is provided.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Markets     *handler.MarketHandler
	Predictions *handler.PredictionHandler
	Claims      *handler.ClaimHandler
	Admin       *handler.AdminHandler
}

// Server is the HTTP + WebSocket API for the settlement engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, rate limiting, auth) and attaches
// the WebSocket hub. limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market lifecycle.
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Markets.ResolveMarket)

	// Predictions and positions.
	mux.HandleFunc("POST /api/markets/{id}/predictions", handlers.Predictions.PlacePrediction)
	mux.HandleFunc("GET /api/markets/{id}/positions/{address}", handlers.Predictions.GetPosition)

	// Claims and balances.
	mux.HandleFunc("POST /api/markets/{id}/claim", handlers.Claims.Claim)
	mux.HandleFunc("GET /api/balances/{address}", handlers.Claims.GetBalance)
	mux.HandleFunc("GET /api/pool", handlers.Claims.GetPoolBalance)

	// Admin controls.
	mux.HandleFunc("GET /api/admin/params", handlers.Admin.GetParams)
	mux.HandleFunc("PUT /api/admin/oracle", handlers.Admin.SetOracle)
	mux.HandleFunc("PUT /api/admin/minimum-stake", handlers.Admin.SetMinimumStake)
	mux.HandleFunc("PUT /api/admin/fee-percentage", handlers.Admin.SetFeePercentage)
	mux.HandleFunc("POST /api/admin/withdraw", handlers.Admin.Withdraw)
	mux.HandleFunc("POST /api/admin/blocks/advance", handlers.Admin.AdvanceBlocks)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
