package accounting

import (
	"context"
)

// Repository persists postings.
type Repository interface {
	Save(ctx context.Context, p *Posting) error
	ListByDocument(ctx context.Context, documentID string) ([]*Posting, error)
	Balances(ctx context.Context) ([]AccountBalance, error)
}
