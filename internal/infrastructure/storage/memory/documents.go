package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"salesledger/internal/core/apperror"
	"salesledger/internal/domain/documents"
)

// SaleRepo implements documents.SaleRepository.
type SaleRepo struct {
	mu    sync.RWMutex
	items map[string]*documents.Sale
	order []string
}

var _ documents.SaleRepository = (*SaleRepo)(nil)

func NewSaleRepo() *SaleRepo {
	return &SaleRepo{items: make(map[string]*documents.Sale)}
}

func (r *SaleRepo) Create(_ context.Context, sale *documents.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[sale.ID]; ok {
		return apperror.NewDuplicate("sale", "id", sale.ID)
	}
	r.items[sale.ID] = cloneSale(sale)
	r.order = append(r.order, sale.ID)
	return nil
}

func (r *SaleRepo) Get(_ context.Context, id string) (*documents.Sale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[id]
	if !ok {
		return nil, apperror.NewNotFound("sale", id)
	}
	return cloneSale(s), nil
}

func (r *SaleRepo) UpdateReturns(_ context.Context, sale *documents.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[sale.ID]
	if !ok {
		return apperror.NewNotFound("sale", sale.ID)
	}
	s.Status = sale.Status
	s.Returned = maps.Clone(sale.Returned)
	s.UpdatedAt = sale.UpdatedAt
	return nil
}

func (r *SaleRepo) SetValidation(_ context.Context, id string, status documents.ValidationStatus, note string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return false, apperror.NewNotFound("sale", id)
	}
	if s.ValidationStatus != documents.ValidationPending {
		return false, nil
	}
	s.ValidationStatus = status
	s.ValidationNote = note
	s.UpdatedAt = at
	return true, nil
}

func (r *SaleRepo) List(_ context.Context, f documents.SaleFilter) ([]*documents.Sale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*documents.Sale, 0)
	for _, id := range r.order {
		s := r.items[id]
		if f.BranchID != "" && s.Location.BranchID != f.BranchID {
			continue
		}
		if f.ClientID != "" && s.ClientID != f.ClientID {
			continue
		}
		if f.From != nil && s.IssueDate.Before(*f.From) {
			continue
		}
		if f.To != nil && s.IssueDate.After(*f.To) {
			continue
		}
		out = append(out, cloneSale(s))
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// ReturnRepo implements documents.ReturnRepository.
type ReturnRepo struct {
	mu    sync.RWMutex
	items map[string]*documents.Return
}

var _ documents.ReturnRepository = (*ReturnRepo)(nil)

func NewReturnRepo() *ReturnRepo {
	return &ReturnRepo{items: make(map[string]*documents.Return)}
}

func (r *ReturnRepo) Create(_ context.Context, ret *documents.Return) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[ret.ID]; ok {
		return apperror.NewDuplicate("return", "id", ret.ID)
	}
	r.items[ret.ID] = cloneReturn(ret)
	return nil
}

func (r *ReturnRepo) Get(_ context.Context, id string) (*documents.Return, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret, ok := r.items[id]
	if !ok {
		return nil, apperror.NewNotFound("return", id)
	}
	return cloneReturn(ret), nil
}

func (r *ReturnRepo) ListByOriginal(_ context.Context, saleID string) ([]*documents.Return, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*documents.Return, 0)
	for _, ret := range r.items {
		if ret.OriginalID == saleID {
			out = append(out, cloneReturn(ret))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *ReturnRepo) SetValidation(_ context.Context, id string, status documents.ValidationStatus, note string, _ time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret, ok := r.items[id]
	if !ok {
		return false, apperror.NewNotFound("return", id)
	}
	if ret.ValidationStatus != documents.ValidationPending {
		return false, nil
	}
	ret.ValidationStatus = status
	ret.ValidationNote = note
	return true, nil
}

func cloneSale(s *documents.Sale) *documents.Sale {
	cp := *s
	cp.Lines = slices.Clone(s.Lines)
	cp.Returned = maps.Clone(s.Returned)
	return &cp
}

func cloneReturn(r *documents.Return) *documents.Return {
	cp := *r
	cp.Lines = slices.Clone(r.Lines)
	return &cp
}
