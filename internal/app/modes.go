package app

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/alanyoungcy/updownmarket/internal/blob/s3"
	"github.com/alanyoungcy/updownmarket/internal/domain"
	"github.com/alanyoungcy/updownmarket/internal/engine"
	"github.com/alanyoungcy/updownmarket/internal/notify"
	"github.com/alanyoungcy/updownmarket/internal/server"
	"github.com/alanyoungcy/updownmarket/internal/server/handler"
	"github.com/alanyoungcy/updownmarket/internal/server/ws"
)

// ServeMode runs the full stack: the engine over PostgreSQL and Redis, the
// HTTP + WebSocket API, the settlement report archiver, and the notification
// watcher. It blocks until the context is cancelled or a component fails.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	eng, err := a.buildEngine(ctx, deps)
	if err != nil {
		return err
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: time.Now().UTC(),
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	if deps.BlobWriter != nil {
		archiver := s3blob.NewArchiver(
			deps.BlobWriter,
			deps.MarketStore,
			deps.PositionStore,
			deps.SignalBus,
			deps.LockManager,
			a.logger,
		)
		g.Go(func() error {
			return archiver.Run(ctx)
		})
	}

	if deps.Notifier != nil && deps.SignalBus != nil {
		watcher := notify.NewWatcher(deps.SignalBus, deps.Notifier, a.logger)
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, eng, hub)
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return err
}

// SimMode runs the engine over in-memory stores with a manually advanced
// block clock. The block-advance endpoint is enabled; Redis-backed
// facilities, archival, and notifications are not wired.
func (a *App) SimMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	eng, err := a.buildEngine(ctx, deps)
	if err != nil {
		return err
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, eng, nil)
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return err
}

// buildEngine constructs the engine from the wired dependencies and seeds
// the parameter record on first boot.
func (a *App) buildEngine(ctx context.Context, deps *Dependencies) (*engine.Engine, error) {
	eng := engine.New(engine.Deps{
		Markets:   deps.MarketStore,
		Positions: deps.PositionStore,
		Params:    deps.ParamsStore,
		Ledger:    deps.Ledger,
		Clock:     deps.Clock,
		Cache:     deps.MarketCache,
		Audit:     deps.AuditStore,
		Bus:       deps.SignalBus,
		Account:   a.cfg.EngineAccount(),
	}, a.logger)

	if err := eng.Bootstrap(ctx, domain.EngineParams{
		Owner:         a.cfg.OwnerAddress(),
		Oracle:        a.cfg.OracleAddress(),
		MinimumStake:  a.cfg.Engine.MinimumStake,
		FeePercentage: a.cfg.Engine.FeePercentage,
		UpdatedAt:     time.Now().UTC(),
	}); err != nil {
		return nil, err
	}
	return eng, nil
}

// startHTTPServer adds the HTTP server and its graceful-shutdown watcher to
// the given errgroup. hub may be nil (sim mode), in which case the WebSocket
// endpoint is not registered.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	eng *engine.Engine,
	hub *ws.Hub,
) {
	var advancer handler.BlockAdvancer
	if deps.SimClock != nil {
		advancer = deps.SimClock
	}

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(deps.Clock, deps.HealthChecks, a.logger),
		Markets:     handler.NewMarketHandler(eng, a.logger),
		Predictions: handler.NewPredictionHandler(eng, a.logger),
		Claims:      handler.NewClaimHandler(eng, a.logger),
		Admin:       handler.NewAdminHandler(eng, advancer, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
