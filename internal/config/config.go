// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"

	"salesledger/internal/domain/accounting"
	"salesledger/internal/domain/numbering"
	"salesledger/internal/infrastructure/storage/postgres"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	ValidationLocal = "local"
	ValidationAsynq = "asynq"
)

// Config holds runtime configuration for the server, worker and seed tools.
type Config struct {
	AppEnv          string        `envconfig:"APP_ENV" default:"development"`
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	MetricsAddr     string        `envconfig:"WORKER_METRICS_ADDR" default:":9091"`

	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`

	Storage        string        `envconfig:"STORAGE" default:"memory"`
	DatabaseURL    string        `envconfig:"DATABASE_URL"`
	DBMaxConns     int32         `envconfig:"DB_MAX_CONNS" default:"20"`
	DBStmtTimeout  time.Duration `envconfig:"DB_STATEMENT_TIMEOUT" default:"30s"`
	AutoMigrate    bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
	RedisURL       string        `envconfig:"REDIS_URL"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	ValidationMode         string        `envconfig:"VALIDATION_MODE" default:"local"`
	ValidationDelayMin     time.Duration `envconfig:"VALIDATION_DELAY_MIN" default:"500ms"`
	ValidationDelayMax     time.Duration `envconfig:"VALIDATION_DELAY_MAX" default:"3s"`
	ValidationApprovalRate float64       `envconfig:"VALIDATION_APPROVAL_RATE" default:"0.95"`
	ValidationSeed         uint64        `envconfig:"VALIDATION_SEED" default:"0"`
	ValidationConcurrency  int           `envconfig:"VALIDATION_CONCURRENCY" default:"5"`

	NumberingExpiryWarningDays int   `envconfig:"NUMBERING_EXPIRY_WARNING_DAYS" default:"30"`
	NumberingExhaustionWarning int64 `envconfig:"NUMBERING_EXHAUSTION_WARNING" default:"100"`

	AccountReceivable         string `envconfig:"ACCOUNT_RECEIVABLE" default:"130505"`
	AccountClientAdvance      string `envconfig:"ACCOUNT_CLIENT_ADVANCE" default:"280505"`
	AccountTaxPayable         string `envconfig:"ACCOUNT_TAX_PAYABLE" default:"240801"`
	AccountDefaultIncome      string `envconfig:"ACCOUNT_DEFAULT_INCOME" default:"413505"`
	AccountDefaultCostOfSales string `envconfig:"ACCOUNT_DEFAULT_COST_OF_SALES" default:"613505"`
	AccountDefaultInventory   string `envconfig:"ACCOUNT_DEFAULT_INVENTORY" default:"143505"`

	NegativeStockLocations []string `envconfig:"NEGATIVE_STOCK_LOCATIONS"`
	Timezone               string   `envconfig:"TIMEZONE" default:"UTC"`
}

// Load reads the configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE=%s", StoragePostgres)
		}
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Storage)
	}

	switch c.ValidationMode {
	case ValidationLocal:
	case ValidationAsynq:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when VALIDATION_MODE=%s", ValidationAsynq)
		}
	default:
		return fmt.Errorf("unknown VALIDATION_MODE %q", c.ValidationMode)
	}

	if c.ValidationDelayMin > c.ValidationDelayMax {
		return fmt.Errorf("VALIDATION_DELAY_MIN exceeds VALIDATION_DELAY_MAX")
	}
	if c.ValidationApprovalRate < 0 || c.ValidationApprovalRate > 1 {
		return fmt.Errorf("VALIDATION_APPROVAL_RATE must be within [0,1]")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	return c.AccountPlan().Validate()
}

// IsProduction reports whether the process runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// Location returns the business timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AccountPlan returns the configured ledger accounts.
func (c *Config) AccountPlan() accounting.AccountPlan {
	return accounting.AccountPlan{
		Receivable:         c.AccountReceivable,
		ClientAdvance:      c.AccountClientAdvance,
		TaxPayable:         c.AccountTaxPayable,
		DefaultIncome:      c.AccountDefaultIncome,
		DefaultCostOfSales: c.AccountDefaultCostOfSales,
		DefaultInventory:   c.AccountDefaultInventory,
	}
}

// NumberingLimits returns the warning thresholds of the numbering authority.
func (c *Config) NumberingLimits() numbering.Limits {
	return numbering.Limits{
		ExpiryWarningDays: c.NumberingExpiryWarningDays,
		ExhaustionWarning: c.NumberingExhaustionWarning,
	}
}

// NegativeStock returns the trimmed list of locations allowed to go negative.
func (c *Config) NegativeStock() []string {
	out := make([]string, 0, len(c.NegativeStockLocations))
	for _, l := range c.NegativeStockLocations {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// PoolConfig returns the postgres pool settings.
func (c *Config) PoolConfig() postgres.PoolConfig {
	pc := postgres.DefaultPoolConfig(c.DatabaseURL)
	if c.DBMaxConns > 0 {
		pc.MaxConns = c.DBMaxConns
	}
	pc.StatementTimeout = c.DBStmtTimeout
	return pc
}

// RedisOptions parses REDIS_URL.
func (c *Config) RedisOptions() (*redis.Options, error) {
	if c.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is not set")
	}
	return redis.ParseURL(c.RedisURL)
}

// AsynqRedis returns the asynq connection settings derived from REDIS_URL.
func (c *Config) AsynqRedis() (asynq.RedisClientOpt, error) {
	opts, err := c.RedisOptions()
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	}, nil
}
