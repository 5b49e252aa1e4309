package numbering

import (
	"context"
)

// Repository persists numbering resolutions.
type Repository interface {
	Create(ctx context.Context, res *Resolution) error

	// GetByID returns a NOT_FOUND AppError when id is unknown.
	GetByID(ctx context.Context, id string) (*Resolution, error)

	// ListByBranch returns every resolution of a branch, active or not.
	ListByBranch(ctx context.Context, branchID string) ([]*Resolution, error)

	// FindActive returns active resolutions of a branch and kind,
	// branch-wide and sub-location specific alike.
	FindActive(ctx context.Context, branchID string, kind Kind) ([]*Resolution, error)

	SetActive(ctx context.Context, id string, active bool) error

	// Increment atomically returns the current number and advances it by one.
	// It fails with RESOLUTION_EXHAUSTED instead of issuing past RangeTo.
	Increment(ctx context.Context, id string) (int64, error)
}
