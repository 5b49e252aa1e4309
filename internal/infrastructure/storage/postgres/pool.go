// Package postgres provides the PostgreSQL storage of the engine: the
// connection pool, the transaction manager and the schema.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"salesledger/pkg/logger"
)

// PoolConfig holds connection pool configuration.
type PoolConfig struct {
	DSN               string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration

	// StatementTimeout bounds every statement of a session; zero keeps the
	// server default.
	StatementTimeout time.Duration
	ApplicationName  string
}

func DefaultPoolConfig(dsn string) PoolConfig {
	return PoolConfig{
		DSN:               dsn,
		MaxConns:          20,
		MinConns:          2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
		StatementTimeout:  30 * time.Second,
		ApplicationName:   "salesledger",
	}
}

// Pool wraps pgxpool.Pool.
type Pool struct {
	*pgxpool.Pool
}

func (p *Pool) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}

// NewPool connects and pings the database. Sessions run in UTC; business
// dates are derived in the engine's configured timezone.
func NewPool(ctx context.Context, cfg PoolConfig) (*Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod

	runtime := poolConfig.ConnConfig.RuntimeParams
	runtime["timezone"] = "UTC"
	if cfg.ApplicationName != "" {
		runtime["application_name"] = cfg.ApplicationName
	}
	if cfg.StatementTimeout > 0 {
		runtime["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		logger.Debug(ctx, "database connection opened", "pid", conn.PgConn().PID())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// PoolStats is a snapshot of pool usage.
type PoolStats struct {
	Total    int32
	Acquired int32
	Idle     int32
	Max      int32
}

func (p *Pool) Stats() PoolStats {
	s := p.Stat()
	return PoolStats{
		Total:    s.TotalConns(),
		Acquired: s.AcquiredConns(),
		Idle:     s.IdleConns(),
		Max:      s.MaxConns(),
	}
}

// LogPoolStats logs pool usage at info level.
func LogPoolStats(ctx context.Context, pool *Pool) {
	s := pool.Stats()
	logger.Info(ctx, "database pool stats",
		"total", s.Total,
		"acquired", s.Acquired,
		"idle", s.Idle,
		"max", s.Max,
	)
}
