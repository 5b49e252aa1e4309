package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesledger/internal/core/types"
	"salesledger/internal/domain/fiscal"
)

type stubValidator struct {
	outcome fiscal.Outcome
	err     error
}

func (v stubValidator) Validate(_ context.Context, req fiscal.Request) (fiscal.Result, error) {
	if v.err != nil {
		return fiscal.Result{}, v.err
	}
	return fiscal.Result{
		AttemptID:  req.AttemptID,
		DocumentID: req.DocumentID,
		Kind:       req.Kind,
		Outcome:    v.outcome,
	}, nil
}

type sliceSink struct {
	results []fiscal.Result
}

func (s *sliceSink) ApplyValidation(_ context.Context, res fiscal.Result) error {
	s.results = append(s.results, res)
	return nil
}

func TestValidationTaskRoundTrip(t *testing.T) {
	req := fiscal.Request{
		AttemptID:  "fv_1",
		DocumentID: "FE-007",
		Kind:       fiscal.KindSale,
		Number:     "FE-007",
		Total:      types.MustMoney("1190000"),
		IssuedAt:   time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
	}
	task, err := NewValidationTask(req)
	require.NoError(t, err)
	assert.Equal(t, TaskValidateDocument, task.Type())

	got, err := DecodeValidationTask(task)
	require.NoError(t, err)
	assert.Equal(t, req.DocumentID, got.DocumentID)
	assert.True(t, req.Total.Equal(got.Total))
	assert.True(t, req.IssuedAt.Equal(got.IssuedAt))
}

func TestValidationHandler(t *testing.T) {
	tests := []struct {
		name      string
		payload   []byte
		validator stubValidator
		skipRetry bool
		wantErr   bool
		applied   int
	}{
		{
			name:      "approved",
			payload:   []byte(`{"attempt_id":"fv_1","document_id":"FE-001","kind":"sale"}`),
			validator: stubValidator{outcome: fiscal.OutcomeApproved},
			applied:   1,
		},
		{
			name:      "malformed payload",
			payload:   []byte(`{not json`),
			validator: stubValidator{outcome: fiscal.OutcomeApproved},
			wantErr:   true,
			skipRetry: true,
		},
		{
			name:      "missing document id",
			payload:   []byte(`{"kind":"sale"}`),
			validator: stubValidator{outcome: fiscal.OutcomeApproved},
			wantErr:   true,
			skipRetry: true,
		},
		{
			name:      "service unavailable is retried",
			payload:   []byte(`{"document_id":"FE-001","kind":"sale"}`),
			validator: stubValidator{err: errors.New("connection refused")},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &sliceSink{}
			h := NewValidationHandler(tt.validator, sink)

			err := h.Handle(context.Background(), asynq.NewTask(TaskValidateDocument, tt.payload))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, sink.results, tt.applied)
		})
	}
}

func TestTaskIDPerDocument(t *testing.T) {
	assert.Equal(t, "validate:FE-001", taskID("FE-001"))
	assert.NotEqual(t, taskID("FE-001"), taskID("NC-001"))
}
