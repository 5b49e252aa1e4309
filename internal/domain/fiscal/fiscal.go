// Package fiscal models the external validation round trip of issued
// documents. Validation never blocks issuance: documents are scheduled on a
// Dispatcher, a Validator decides, and the outcome is handed to a Sink that
// only updates the validation status of the document.
package fiscal

import (
	"context"
	"fmt"
	"time"

	appctx "salesledger/internal/core/context"
	"salesledger/internal/core/types"
	"salesledger/pkg/logger"
)

// Outcome of a validation.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

// DocumentKind distinguishes sale and return documents.
type DocumentKind string

const (
	KindSale   DocumentKind = "sale"
	KindReturn DocumentKind = "return"
)

// Request asks for the validation of one document.
type Request struct {
	AttemptID  string       `json:"attempt_id"`
	DocumentID string       `json:"document_id"`
	Kind       DocumentKind `json:"kind"`
	Number     string       `json:"number"`
	Total      types.Money  `json:"total"`
	IssuedAt   time.Time    `json:"issued_at"`
}

// Result is the decision of the validation service.
type Result struct {
	AttemptID  string       `json:"attempt_id"`
	DocumentID string       `json:"document_id"`
	Kind       DocumentKind `json:"kind"`
	Outcome    Outcome      `json:"outcome"`
	Reason     string       `json:"reason,omitempty"`
	DecidedAt  time.Time    `json:"decided_at"`
}

// Validator talks to the validation service.
type Validator interface {
	Validate(ctx context.Context, req Request) (Result, error)
}

// Sink receives validation results.
type Sink interface {
	ApplyValidation(ctx context.Context, res Result) error
}

// Dispatcher runs validations in the background.
type Dispatcher interface {
	// Schedule queues req and returns immediately.
	Schedule(ctx context.Context, req Request) error
	// Cancel drops the pending validation of a document, if any.
	Cancel(ctx context.Context, documentID string) error
}

// Process validates req and delivers the result to sink.
func Process(ctx context.Context, v Validator, sink Sink, req Request) error {
	ctx = appctx.WithDocument(ctx, req.DocumentID)
	res, err := v.Validate(ctx, req)
	if err != nil {
		return fmt.Errorf("validate %s %s: %w", req.Kind, req.DocumentID, err)
	}
	if err := sink.ApplyValidation(ctx, res); err != nil {
		return fmt.Errorf("apply validation of %s: %w", req.DocumentID, err)
	}
	logger.Info(ctx, "document validated",
		"kind", res.Kind,
		"outcome", res.Outcome,
		"attempt_id", res.AttemptID)
	return nil
}
