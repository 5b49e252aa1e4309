package stock

import (
	"context"
	"time"
)

// MovementFilter narrows the stock card.
type MovementFilter struct {
	ItemID     string
	LocationID string
	RecorderID string
	From       *time.Time
	To         *time.Time
	Limit      int
}

// Repository persists records and movements.
type Repository interface {
	// Get returns the record or nil when the pair was never stocked.
	// Inside a database transaction the row is locked until commit.
	Get(ctx context.Context, itemID, locationID string) (*Record, error)

	Save(ctx context.Context, rec *Record) error

	AppendMovement(ctx context.Context, m *Movement) error

	ListMovements(ctx context.Context, filter MovementFilter) ([]*Movement, error)

	ListByLocation(ctx context.Context, locationID string) ([]*Record, error)
}
