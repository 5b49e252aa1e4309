package accounting

import (
	"context"
	"fmt"

	"salesledger/pkg/logger"
)

// Service generates and records postings.
type Service struct {
	gen  *Generator
	repo Repository
}

// NewService creates the accounting service.
func NewService(gen *Generator, repo Repository) *Service {
	return &Service{gen: gen, repo: repo}
}

// Generator returns the underlying generator.
func (s *Service) Generator() *Generator {
	return s.gen
}

// Prepare generates the postings of events in order, dropping empty ones.
// Nothing is stored; an imbalance is logged and returned.
func (s *Service) Prepare(ctx context.Context, events ...Event) ([]*Posting, error) {
	out := make([]*Posting, 0, len(events))
	for _, ev := range events {
		p, err := s.gen.Generate(ev)
		if err != nil {
			if Imbalanced(err) {
				logger.Error(ctx, "imbalanced posting", "document_id", ev.DocumentID, "kind", ev.Kind, "error", err)
			}
			return nil, err
		}
		if p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

// Record stores postings after re-checking their balance.
func (s *Service) Record(ctx context.Context, postings ...*Posting) error {
	for _, p := range postings {
		if err := p.CheckBalance(); err != nil {
			logger.Error(ctx, "refusing imbalanced posting", "posting_id", p.ID, "document_id", p.DocumentID, "error", err)
			return err
		}
		if err := s.repo.Save(ctx, p); err != nil {
			return fmt.Errorf("save posting %s: %w", p.ID, err)
		}
	}
	return nil
}

// ForDocument returns the postings of a document in creation order.
func (s *Service) ForDocument(ctx context.Context, documentID string) ([]*Posting, error) {
	return s.repo.ListByDocument(ctx, documentID)
}

// Balances returns the debit and credit totals per account.
func (s *Service) Balances(ctx context.Context) ([]AccountBalance, error) {
	return s.repo.Balances(ctx)
}
