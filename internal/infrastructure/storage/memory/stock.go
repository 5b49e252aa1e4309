package memory

import (
	"context"
	"sort"
	"sync"

	"salesledger/internal/domain/registers/stock"
)

// StockRepo implements stock.Repository.
type StockRepo struct {
	mu        sync.RWMutex
	records   map[string]*stock.Record
	movements []*stock.Movement
}

var _ stock.Repository = (*StockRepo)(nil)

// NewStockRepo creates an empty repository.
func NewStockRepo() *StockRepo {
	return &StockRepo{records: make(map[string]*stock.Record)}
}

func (r *StockRepo) Get(_ context.Context, itemID, locationID string) (*stock.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[stock.Key(itemID, locationID)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *StockRepo) Save(_ context.Context, rec *stock.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.records[stock.Key(rec.ItemID, rec.LocationID)] = &cp
	return nil
}

func (r *StockRepo) AppendMovement(_ context.Context, m *stock.Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.movements = append(r.movements, &cp)
	return nil
}

func (r *StockRepo) ListMovements(_ context.Context, f stock.MovementFilter) ([]*stock.Movement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*stock.Movement, 0)
	for _, m := range r.movements {
		if f.ItemID != "" && m.ItemID != f.ItemID {
			continue
		}
		if f.LocationID != "" && m.LocationID != f.LocationID {
			continue
		}
		if f.RecorderID != "" && m.RecorderID != f.RecorderID {
			continue
		}
		if f.From != nil && m.Period.Before(*f.From) {
			continue
		}
		if f.To != nil && m.Period.After(*f.To) {
			continue
		}
		cp := *m
		out = append(out, &cp)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (r *StockRepo) ListByLocation(_ context.Context, locationID string) ([]*stock.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*stock.Record, 0)
	for _, rec := range r.records {
		if rec.LocationID == locationID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}
