package documents

import (
	"context"
	"time"
)

// SaleFilter narrows sale listings.
type SaleFilter struct {
	BranchID string
	ClientID string
	From     *time.Time
	To       *time.Time
	Limit    int
}

// SaleRepository persists sales.
type SaleRepository interface {
	Create(ctx context.Context, sale *Sale) error

	// Get returns a NOT_FOUND AppError when id is unknown.
	Get(ctx context.Context, id string) (*Sale, error)

	// UpdateReturns stores Status, Returned and UpdatedAt.
	UpdateReturns(ctx context.Context, sale *Sale) error

	// SetValidation moves a pending validation to a final status.
	// It reports false when the sale was not pending.
	SetValidation(ctx context.Context, id string, status ValidationStatus, note string, at time.Time) (bool, error)

	List(ctx context.Context, filter SaleFilter) ([]*Sale, error)
}

// ReturnRepository persists returns.
type ReturnRepository interface {
	Create(ctx context.Context, ret *Return) error
	Get(ctx context.Context, id string) (*Return, error)
	ListByOriginal(ctx context.Context, saleID string) ([]*Return, error)
	SetValidation(ctx context.Context, id string, status ValidationStatus, note string, at time.Time) (bool, error)
}
