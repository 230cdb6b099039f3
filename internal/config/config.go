// Package config defines the top-level configuration for the settlement
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by UPDOWN_* environment variables.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Chain    ChainConfig    `toml:"chain"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// EngineConfig holds the initial engine parameters. Owner and oracle are
// hex-encoded addresses; they seed the parameter record on first boot and
// are ignored once one exists.
type EngineConfig struct {
	Owner         string `toml:"owner"`
	Oracle        string `toml:"oracle"`
	Account       string `toml:"account"`
	MinimumStake  uint64 `toml:"minimum_stake"`
	FeePercentage uint64 `toml:"fee_percentage"`
}

// ChainConfig holds block clock parameters. RPCURL is used in serve mode;
// SimStartHeight seeds the simulated clock in sim mode.
type ChainConfig struct {
	RPCURL         string   `toml:"rpc_url"`
	CacheTTL       duration `toml:"cache_ttl"`
	SimStartHeight uint64   `toml:"sim_start_height"`
}

// LedgerConfig holds the in-memory ledger genesis allocation, keyed by
// hex-encoded address.
type LedgerConfig struct {
	Genesis map[string]uint64 `toml:"genesis"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for settlement
// report archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			Account:       "0x0000000000000000000000000000000000000001",
			MinimumStake:  1_000_000,
			FeePercentage: 2,
		},
		Chain: ChainConfig{
			CacheTTL:       duration{2 * time.Second},
			SimStartHeight: 1,
		},
		Ledger: LedgerConfig{
			Genesis: map[string]uint64{},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "updownmarket",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "updownmarket-reports",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   100,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"market_resolved", "fees_withdrawn"},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode. "serve" runs
// against PostgreSQL, Redis, and an RPC block clock; "sim" runs entirely in
// memory with a manually advanced clock.
var validModes = map[string]bool{
	"serve": true,
	"sim":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, sim)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine addresses.
	if !common.IsHexAddress(c.Engine.Owner) {
		errs = append(errs, fmt.Sprintf("engine: owner %q is not a valid hex address", c.Engine.Owner))
	}
	if !common.IsHexAddress(c.Engine.Oracle) {
		errs = append(errs, fmt.Sprintf("engine: oracle %q is not a valid hex address", c.Engine.Oracle))
	}
	if !common.IsHexAddress(c.Engine.Account) {
		errs = append(errs, fmt.Sprintf("engine: account %q is not a valid hex address", c.Engine.Account))
	}
	if c.Engine.MinimumStake == 0 {
		errs = append(errs, "engine: minimum_stake must be positive")
	}
	if c.Engine.FeePercentage > 100 {
		errs = append(errs, fmt.Sprintf("engine: fee_percentage must be 0-100, got %d", c.Engine.FeePercentage))
	}

	// Ledger genesis addresses.
	for addr := range c.Ledger.Genesis {
		if !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Sprintf("ledger: genesis key %q is not a valid hex address", addr))
		}
	}

	// Serve mode needs the full backing stack.
	if mode == "serve" {
		if c.Chain.RPCURL == "" {
			errs = append(errs, "chain: rpc_url is required in serve mode")
		}
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3 (optional archive target).
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Server.
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be positive when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// OwnerAddress returns the decoded owner address. Call after Validate.
func (c *Config) OwnerAddress() common.Address {
	return common.HexToAddress(c.Engine.Owner)
}

// OracleAddress returns the decoded oracle address. Call after Validate.
func (c *Config) OracleAddress() common.Address {
	return common.HexToAddress(c.Engine.Oracle)
}

// EngineAccount returns the decoded pool account address. Call after
// Validate.
func (c *Config) EngineAccount() common.Address {
	return common.HexToAddress(c.Engine.Account)
}

// GenesisAllocations returns the ledger genesis map keyed by decoded
// address. Call after Validate.
func (c *Config) GenesisAllocations() map[common.Address]uint64 {
	out := make(map[common.Address]uint64, len(c.Ledger.Genesis))
	for addr, balance := range c.Ledger.Genesis {
		out[common.HexToAddress(addr)] = balance
	}
	return out
}
