package memory

import (
	"context"
	"sort"
	"sync"

	"salesledger/internal/core/types"
	"salesledger/internal/domain/accounting"
)

// PostingRepo implements accounting.Repository.
type PostingRepo struct {
	mu       sync.RWMutex
	postings []*accounting.Posting
}

var _ accounting.Repository = (*PostingRepo)(nil)

// NewPostingRepo creates an empty repository.
func NewPostingRepo() *PostingRepo {
	return &PostingRepo{}
}

func (r *PostingRepo) Save(_ context.Context, p *accounting.Posting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.postings = append(r.postings, clonePosting(p))
	return nil
}

func (r *PostingRepo) ListByDocument(_ context.Context, documentID string) ([]*accounting.Posting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*accounting.Posting, 0)
	for _, p := range r.postings {
		if p.DocumentID == documentID {
			out = append(out, clonePosting(p))
		}
	}
	return out, nil
}

func (r *PostingRepo) Balances(_ context.Context) ([]accounting.AccountBalance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byAccount := make(map[string]*accounting.AccountBalance)
	for _, p := range r.postings {
		for _, l := range p.Lines {
			b, ok := byAccount[l.Account]
			if !ok {
				b = &accounting.AccountBalance{Account: l.Account, Debit: types.Zero(), Credit: types.Zero()}
				byAccount[l.Account] = b
			}
			b.Debit = b.Debit.Add(l.Debit)
			b.Credit = b.Credit.Add(l.Credit)
		}
	}
	out := make([]accounting.AccountBalance, 0, len(byAccount))
	for _, b := range byAccount {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out, nil
}

// Count returns the number of stored postings.
func (r *PostingRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.postings)
}

func clonePosting(p *accounting.Posting) *accounting.Posting {
	cp := *p
	cp.Lines = append([]accounting.Line(nil), p.Lines...)
	return &cp
}
