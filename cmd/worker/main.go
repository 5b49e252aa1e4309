// Package main is the entry point for the fiscal validation worker. It
// consumes validation tasks enqueued by the server and records outcomes in
// the shared database.
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

	"golang.org/x/sync/errgroup"

	"salesledger/internal/app"
	"salesledger/internal/config"
	"salesledger/internal/domain/fiscal"
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
		Service:     "salesledger-worker",
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
		log.Errorw("worker stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("worker stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if cfg.Storage != config.StoragePostgres {
		return fmt.Errorf("worker requires STORAGE=%s", config.StoragePostgres)
	}
	redisOpts, err := cfg.AsynqRedis()
	if err != nil {
		return err
	}

	engine, closeStorage, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	// The server already waited ValidationDelayMin before the task became
	// visible, so only the jitter above it remains here.
	validator := fiscal.NewSimulatedValidator(
		0,
		cfg.ValidationDelayMax-cfg.ValidationDelayMin,
		cfg.ValidationApprovalRate,
		cfg.ValidationSeed,
	)

	metrics := observability.NewMetrics()

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Concurrency: cfg.ValidationConcurrency,
		Handler:     jobs.NewValidationHandler(metrics.InstrumentValidator(validator), engine.Invoicing),
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Infow("validation worker started",
		"queue", jobs.QueueValidation,
		"concurrency", cfg.ValidationConcurrency,
		"metrics_addr", cfg.MetricsAddr,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
