// Package memory provides in-process repositories. They back the server in
// STORAGE=memory mode and serve as fakes in domain tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"salesledger/internal/core/apperror"
	"salesledger/internal/domain/numbering"
)

// ResolutionRepo implements numbering.Repository.
type ResolutionRepo struct {
	mu    sync.RWMutex
	items map[string]*numbering.Resolution
}

var _ numbering.Repository = (*ResolutionRepo)(nil)

// NewResolutionRepo creates an empty repository.
func NewResolutionRepo() *ResolutionRepo {
	return &ResolutionRepo{items: make(map[string]*numbering.Resolution)}
}

func (r *ResolutionRepo) Create(_ context.Context, res *numbering.Resolution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[res.ID]; ok {
		return apperror.NewDuplicate("resolution", "id", res.ID)
	}
	cp := *res
	r.items[res.ID] = &cp
	return nil
}

func (r *ResolutionRepo) GetByID(_ context.Context, id string) (*numbering.Resolution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.items[id]
	if !ok {
		return nil, apperror.NewNotFound("resolution", id)
	}
	cp := *res
	return &cp, nil
}

func (r *ResolutionRepo) ListByBranch(_ context.Context, branchID string) ([]*numbering.Resolution, error) {
	return r.filter(func(res *numbering.Resolution) bool { return res.BranchID == branchID }), nil
}

func (r *ResolutionRepo) FindActive(_ context.Context, branchID string, kind numbering.Kind) ([]*numbering.Resolution, error) {
	return r.filter(func(res *numbering.Resolution) bool {
		return res.Active && res.BranchID == branchID && res.Kind == kind
	}), nil
}

func (r *ResolutionRepo) SetActive(_ context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.items[id]
	if !ok {
		return apperror.NewNotFound("resolution", id)
	}
	res.Active = active
	return nil
}

func (r *ResolutionRepo) Increment(_ context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.items[id]
	if !ok {
		return 0, apperror.NewNotFound("resolution", id)
	}
	if res.Exhausted() {
		return 0, apperror.NewResolutionBlocked(apperror.CodeResolutionExhausted, id, "resolution range is exhausted")
	}
	seq := res.Current
	res.Current++
	return seq, nil
}

func (r *ResolutionRepo) filter(keep func(*numbering.Resolution) bool) []*numbering.Resolution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*numbering.Resolution, 0)
	for _, res := range r.items {
		if keep(res) {
			cp := *res
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) || (out[i].CreatedAt.Equal(out[j].CreatedAt) && out[i].ID < out[j].ID) })
	return out
}
