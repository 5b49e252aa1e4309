// Package jobs runs document validation on an asynq queue backed by Redis.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"salesledger/internal/domain/fiscal"
	"salesledger/pkg/logger"
)

const (
	// QueueValidation is the queue validation tasks run on.
	QueueValidation = "validation"
	// TaskValidateDocument submits one document to the validation service.
	TaskValidateDocument = "fiscal:validate"
)

// NewValidationTask encodes req as an asynq task.
func NewValidationTask(req fiscal.Request, opts ...asynq.Option) (*asynq.Task, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal validation request: %w", err)
	}
	return asynq.NewTask(TaskValidateDocument, body, opts...), nil
}

// DecodeValidationTask reverses NewValidationTask.
func DecodeValidationTask(t *asynq.Task) (fiscal.Request, error) {
	var req fiscal.Request
	if err := json.Unmarshal(t.Payload(), &req); err != nil {
		return req, fmt.Errorf("decode validation payload: %w", err)
	}
	if req.DocumentID == "" {
		return req, errors.New("validation payload has no document id")
	}
	return req, nil
}

// taskID keys tasks by document so a document has at most one queued validation.
func taskID(documentID string) string {
	return "validate:" + documentID
}

// ValidationHandler processes TaskValidateDocument tasks.
type ValidationHandler struct {
	validator fiscal.Validator
	sink      fiscal.Sink
}

func NewValidationHandler(v fiscal.Validator, sink fiscal.Sink) *ValidationHandler {
	return &ValidationHandler{validator: v, sink: sink}
}

// Handle implements asynq.HandlerFunc. Malformed payloads are not retried.
func (h *ValidationHandler) Handle(ctx context.Context, t *asynq.Task) error {
	req, err := DecodeValidationTask(t)
	if err != nil {
		logger.Error(ctx, "drop validation task", "error", err)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return fiscal.Process(ctx, h.validator, h.sink, req)
}
