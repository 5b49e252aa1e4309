package jobs

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"

	"salesledger/pkg/logger"
)

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Concurrency int
	Handler     *ValidationHandler
}

// Worker wraps the asynq server.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Handler == nil {
		return nil, errors.New("worker: validation handler is required")
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueValidation: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Warn(ctx, "validation task failed", "type", task.Type(), "error", err)
		}),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskValidateDocument, cfg.Handler.Handle)
	return &Worker{server: srv, mux: mux}, nil
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}
