// Package apperror provides structured error handling for the invoicing engine.
// Every error that crosses a package boundary towards a caller is an AppError,
// so the HTTP layer and CLI tools can render a code, a message and structured details.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Numbering authority (404, 422)
	CodeResolutionNotFound  = "RESOLUTION_NOT_FOUND"
	CodeResolutionExpired   = "RESOLUTION_EXPIRED"
	CodeResolutionExhausted = "RESOLUTION_EXHAUSTED"
	CodeResolutionInactive  = "RESOLUTION_INACTIVE"

	// Business rule violations (422)
	CodeBusinessRule          = "BUSINESS_RULE_VIOLATION"
	CodeInsufficientStock     = "INSUFFICIENT_STOCK"
	CodeInvalidReturnQuantity = "INVALID_RETURN_QUANTITY"
	CodeVoidNotAllowed        = "VOID_NOT_ALLOWED"
	CodeInsufficientAdvance   = "INSUFFICIENT_ADVANCE"

	// Invariant violations (500)
	CodeImbalancedPosting = "IMBALANCED_POSTING"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict        = "CONFLICT"
	CodeDuplicate       = "DUPLICATE_ENTRY"
	CodeAlreadyReturned = "DOCUMENT_ALREADY_RETURNED"
	CodeIdempotency     = "IDEMPOTENCY_CONFLICT"
)

// AppError is the standard error type of the engine.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (item ids, quantities, resolution id)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewResolutionNotFound is returned when no usable numbering resolution covers a location and date.
func NewResolutionNotFound(branchID, subLocationID, kind string) *AppError {
	return &AppError{
		Code:       CodeResolutionNotFound,
		Message:    fmt.Sprintf("No active %s numbering resolution for branch %s", kind, branchID),
		HTTPStatus: http.StatusNotFound,
		Details: map[string]any{
			"branch_id":       branchID,
			"sub_location_id": subLocationID,
			"kind":            kind,
		},
	}
}

// NewResolutionBlocked reports a hard limit failure (expired, exhausted, inactive).
func NewResolutionBlocked(code, resolutionID, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"resolution_id": resolutionID},
	}
}

// NewInsufficientStock creates a stock shortage error. The shortages
// themselves are attached by the caller under the "shortages" detail.
func NewInsufficientStock(count int) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    fmt.Sprintf("Insufficient stock for %d item(s)", count),
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInvalidReturnQuantity is returned when a return exceeds the remaining returnable quantity.
func NewInvalidReturnQuantity(documentID string) *AppError {
	return &AppError{
		Code:       CodeInvalidReturnQuantity,
		Message:    "Returned quantity exceeds remaining returnable quantity",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"document_id": documentID},
	}
}

// NewVoidNotAllowed is returned when a void is requested outside the issue day.
func NewVoidNotAllowed(documentID, issueDate, today string) *AppError {
	return &AppError{
		Code:       CodeVoidNotAllowed,
		Message:    "Document can only be voided on its issue date",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"document_id": documentID,
			"issue_date":  issueDate,
			"today":       today,
		},
	}
}

// NewAlreadyReturned is returned for returns against a voided or fully returned document.
func NewAlreadyReturned(documentID, status string) *AppError {
	return &AppError{
		Code:       CodeAlreadyReturned,
		Message:    "Document is already voided or fully returned",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"document_id": documentID, "status": status},
	}
}

// NewImbalancedPosting signals a broken double-entry invariant. It is never
// expected in normal operation and aborts the running transaction.
func NewImbalancedPosting(documentID, kind, debit, credit string) *AppError {
	return &AppError{
		Code:       CodeImbalancedPosting,
		Message:    "Posting is not balanced",
		HTTPStatus: http.StatusInternalServerError,
		Details: map[string]any{
			"document_id": documentID,
			"event_kind":  kind,
			"debit":       debit,
			"credit":      credit,
		},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewIdempotencyConflict creates error when operation is already in progress
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Operation already in progress",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewIdempotencyMismatch is returned when the same idempotency key is reused for
// a different request (different operation or body hash).
func NewIdempotencyMismatch(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Idempotency key mismatch",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}
