// Package main is the entry point for the invoicing API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"salesledger/internal/app"
	"salesledger/internal/config"
	"salesledger/internal/domain/fiscal"
	"salesledger/internal/infrastructure/cache"
	v1 "salesledger/internal/infrastructure/http/v1"
	"salesledger/internal/infrastructure/http/v1/handlers"
	"salesledger/internal/infrastructure/http/v1/middleware"
	"salesledger/internal/infrastructure/jobs"
	"salesledger/internal/infrastructure/observability"
	"salesledger/pkg/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.LogDevelopment,
		Service:     "salesledger-api",
		Version:     version,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	if err := run(ctx, cfg, log); err != nil {
		log.Errorw("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	log.Infow("starting invoicing server",
		"version", version,
		"storage", cfg.Storage,
		"validation", cfg.ValidationMode,
	)

	engine, closeStorage, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	checks := map[string]handlers.Pinger{}
	if engine.Pool != nil {
		checks["database"] = engine.Pool
	}

	var (
		rdb         *redis.Client
		idempotency middleware.IdempotencyStore
	)
	if cfg.RedisURL != "" {
		rdb, err = app.NewRedis(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		store, err := cache.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)
		if err != nil {
			return err
		}
		idempotency = store
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		log.Infow("idempotency enabled", "ttl", cfg.IdempotencyTTL)
	}

	metrics := observability.NewMetrics()

	var shutdownDispatcher func(context.Context) error
	switch cfg.ValidationMode {
	case config.ValidationAsynq:
		redisOpts, err := cfg.AsynqRedis()
		if err != nil {
			return err
		}
		d := jobs.NewAsynqDispatcher(jobs.DispatcherConfig{
			RedisOpts: redisOpts,
			Delay:     cfg.ValidationDelayMin,
		})
		engine.Invoicing.SetDispatcher(d)
		shutdownDispatcher = func(context.Context) error { return d.Close() }
	default:
		validator := fiscal.NewSimulatedValidator(
			cfg.ValidationDelayMin,
			cfg.ValidationDelayMax,
			cfg.ValidationApprovalRate,
			cfg.ValidationSeed,
		)
		d := fiscal.NewLocalDispatcher(metrics.InstrumentValidator(validator), engine.Invoicing)
		engine.Invoicing.SetDispatcher(d)
		shutdownDispatcher = d.Shutdown
	}

	loc := cfg.Location()
	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		Invoicing:    engine.Invoicing,
		Numbering:    engine.Numbering,
		Stock:        engine.Stock,
		TxManager:    engine.TxManager,
		Clock:        func() time.Time { return time.Now().In(loc) },
		Idempotency:  idempotency,
		Metrics:      metrics,
		Version:      version,
		Storage:      cfg.Storage,
		HealthChecks: checks,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := shutdownDispatcher(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("dispatcher shutdown: %w", err))
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}
