package fiscal

import (
	"context"
	"errors"
	"sync"

	appctx "salesledger/internal/core/context"
	"salesledger/pkg/logger"
)

// LocalDispatcher runs each validation in its own goroutine. A validation
// lives until it completes, its document is cancelled, or the dispatcher
// shuts down.
type LocalDispatcher struct {
	validator Validator
	sink      Sink

	mu      sync.Mutex
	pending map[string]pendingRun
	seq     uint64
	closed  bool
	wg      sync.WaitGroup
}

type pendingRun struct {
	seq    uint64
	cancel context.CancelFunc
}

var _ Dispatcher = (*LocalDispatcher)(nil)

// ErrDispatcherClosed is returned by Schedule after Shutdown.
var ErrDispatcherClosed = errors.New("fiscal: dispatcher closed")

func NewLocalDispatcher(v Validator, sink Sink) *LocalDispatcher {
	return &LocalDispatcher{
		validator: v,
		sink:      sink,
		pending:   make(map[string]pendingRun),
	}
}

func (d *LocalDispatcher) Schedule(ctx context.Context, req Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	if prev, ok := d.pending[req.DocumentID]; ok {
		prev.cancel()
	}

	runCtx, cancel := context.WithCancel(appctx.Detach(ctx))
	d.seq++
	run := pendingRun{seq: d.seq, cancel: cancel}
	d.pending[req.DocumentID] = run
	d.wg.Add(1)

	go func() {
		defer d.wg.Done()
		defer d.finish(req.DocumentID, run)

		err := Process(runCtx, d.validator, d.sink, req)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			logger.Debug(runCtx, "validation cancelled", "document_id", req.DocumentID)
		default:
			logger.Error(runCtx, "validation failed", "document_id", req.DocumentID, "error", err)
		}
	}()
	return nil
}

func (d *LocalDispatcher) Cancel(_ context.Context, documentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if run, ok := d.pending[documentID]; ok {
		run.cancel()
		delete(d.pending, documentID)
	}
	return nil
}

// Pending returns the number of validations in flight.
func (d *LocalDispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Shutdown cancels every pending validation and waits for the goroutines
// to exit or ctx to end.
func (d *LocalDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	for id, run := range d.pending {
		run.cancel()
		delete(d.pending, id)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every scheduled validation has exited.
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}

func (d *LocalDispatcher) finish(documentID string, run pendingRun) {
	run.cancel()
	d.mu.Lock()
	defer d.mu.Unlock()
	// A rescheduled document owns a newer run.
	if cur, ok := d.pending[documentID]; ok && cur.seq == run.seq {
		delete(d.pending, documentID)
	}
}
