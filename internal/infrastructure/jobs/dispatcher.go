package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"salesledger/internal/domain/fiscal"
	"salesledger/pkg/logger"
)

// AsynqDispatcher implements fiscal.Dispatcher on top of an asynq queue.
type AsynqDispatcher struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	delay     time.Duration
	maxRetry  int
}

var _ fiscal.Dispatcher = (*AsynqDispatcher)(nil)

// DispatcherConfig configures NewAsynqDispatcher.
type DispatcherConfig struct {
	RedisOpts asynq.RedisClientOpt
	// Delay postpones processing after issuance.
	Delay    time.Duration
	MaxRetry int
}

func NewAsynqDispatcher(cfg DispatcherConfig) *AsynqDispatcher {
	maxRetry := cfg.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 5
	}
	return &AsynqDispatcher{
		client:    asynq.NewClient(cfg.RedisOpts),
		inspector: asynq.NewInspector(cfg.RedisOpts),
		delay:     cfg.Delay,
		maxRetry:  maxRetry,
	}
}

// Schedule enqueues req. A queued validation of the same document is
// replaced.
func (d *AsynqDispatcher) Schedule(ctx context.Context, req fiscal.Request) error {
	task, err := NewValidationTask(req,
		asynq.Queue(QueueValidation),
		asynq.TaskID(taskID(req.DocumentID)),
		asynq.MaxRetry(d.maxRetry),
		asynq.ProcessIn(d.delay),
	)
	if err != nil {
		return err
	}

	info, err := d.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		if err := d.Cancel(ctx, req.DocumentID); err != nil {
			return err
		}
		info, err = d.client.EnqueueContext(ctx, task)
	}
	if err != nil {
		return fmt.Errorf("enqueue validation of %s: %w", req.DocumentID, err)
	}
	logger.Debug(ctx, "validation enqueued",
		"document_id", req.DocumentID,
		"task_id", info.ID,
		"process_at", info.NextProcessAt)
	return nil
}

// Cancel deletes the queued validation of a document. A task already
// being processed cannot be deleted and is left to finish.
func (d *AsynqDispatcher) Cancel(ctx context.Context, documentID string) error {
	err := d.inspector.DeleteTask(QueueValidation, taskID(documentID))
	switch {
	case err == nil:
		logger.Debug(ctx, "validation cancelled", "document_id", documentID)
		return nil
	case errors.Is(err, asynq.ErrTaskNotFound), errors.Is(err, asynq.ErrQueueNotFound):
		return nil
	default:
		return fmt.Errorf("cancel validation of %s: %w", documentID, err)
	}
}

// Close releases the redis connections.
func (d *AsynqDispatcher) Close() error {
	return errors.Join(d.client.Close(), d.inspector.Close())
}
