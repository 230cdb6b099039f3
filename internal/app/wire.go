package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/updownmarket/internal/blob/s3"
	"github.com/alanyoungcy/updownmarket/internal/cache/redis"
	"github.com/alanyoungcy/updownmarket/internal/chain"
	"github.com/alanyoungcy/updownmarket/internal/config"
	"github.com/alanyoungcy/updownmarket/internal/domain"
	"github.com/alanyoungcy/updownmarket/internal/ledger"
	"github.com/alanyoungcy/updownmarket/internal/notify"
	"github.com/alanyoungcy/updownmarket/internal/server/handler"
	"github.com/alanyoungcy/updownmarket/internal/store/memory"
	"github.com/alanyoungcy/updownmarket/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	MarketStore   domain.MarketStore
	PositionStore domain.PositionStore
	ParamsStore   domain.ParamsStore
	AuditStore    domain.AuditStore

	// Value transfer and logical time
	Ledger domain.Ledger
	Clock  domain.BlockClock

	// SimClock is non-nil only in sim mode; it backs Clock there and is
	// exposed separately for the block-advance endpoint.
	SimClock *chain.SimClock

	// Redis-backed facilities (nil in sim mode)
	MarketCache domain.MarketCache
	SignalBus   domain.SignalBus
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter

	// Blob storage (nil unless S3 is enabled)
	BlobWriter domain.BlobWriter

	// Notifications
	Notifier *notify.Notifier

	// HealthChecks are per-dependency probes for the health endpoint.
	HealthChecks []handler.Check
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
//
// Serve mode uses PostgreSQL stores, the Redis facilities, and an RPC block
// clock. Sim mode runs entirely in memory with a manually advanced clock.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	mode := strings.ToLower(cfg.Mode)

	// The ledger is process-local in both modes: genesis balances come from
	// configuration and settle in memory.
	deps.Ledger = ledger.New(cfg.GenesisAllocations())

	if mode == "sim" {
		deps.MarketStore = memory.NewMarketStore()
		deps.PositionStore = memory.NewPositionStore()
		deps.ParamsStore = memory.NewParamsStore()
		deps.AuditStore = memory.NewAuditStore()

		sim := chain.NewSimClock(cfg.Chain.SimStartHeight)
		deps.SimClock = sim
		deps.Clock = sim
		return deps, cleanup, nil
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.PositionStore = postgres.NewPositionStore(pool)
	deps.ParamsStore = postgres.NewParamsStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)
	deps.HealthChecks = append(deps.HealthChecks, handler.Check{
		Name:  "postgres",
		Probe: func(ctx context.Context) error { return pool.Ping(ctx) },
	})

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.MarketCache = redis.NewMarketCache(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.HealthChecks = append(deps.HealthChecks, handler.Check{
		Name:  "redis",
		Probe: redisClient.Ping,
	})

	// --- Block clock ---
	clock, err := chain.DialRPCClock(ctx, cfg.Chain.RPCURL, cfg.Chain.CacheTTL.Duration)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: rpc clock: %w", err)
	}
	closers = append(closers, clock.Close)
	deps.Clock = clock

	// --- S3 (optional settlement report archive) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.HealthChecks = append(deps.HealthChecks, handler.Check{
			Name:  "s3",
			Probe: s3Client.Health,
		})
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	return deps, cleanup, nil
}
