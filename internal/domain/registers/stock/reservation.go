package stock

import (
	"context"
	"fmt"
	"sync"
)

// Reservation holds the keys of every controlled item of one request at one
// location from validation until Release, so no concurrent request can take
// the quantities it validated.
type Reservation struct {
	svc        *Service
	locationID string
	keys       map[string]struct{}
	unlock     func()
	once       sync.Once
}

// CheckAndReserve locks the controlled items of reqs and validates them. On
// shortage the locks are released and an INSUFFICIENT_STOCK error listing
// every shortage is returned.
func (s *Service) CheckAndReserve(ctx context.Context, locationID string, reqs []Requirement) (*Reservation, error) {
	order, _ := aggregate(reqs)
	r := s.Reserve(locationID, order)

	shortages, err := s.Validate(ctx, locationID, reqs)
	if err != nil {
		r.Release()
		return nil, err
	}
	if len(shortages) > 0 {
		r.Release()
		return nil, ShortageError(shortages)
	}
	return r, nil
}

// Reserve locks itemIDs at locationID without validating quantities. Inbound
// changes such as returns hold every key until their transaction ends, so a
// row lock taken for one item never waits on another item's key.
func (s *Service) Reserve(locationID string, itemIDs []string) *Reservation {
	keys := make([]string, 0, len(itemIDs))
	held := make(map[string]struct{}, len(itemIDs))
	for _, itemID := range itemIDs {
		k := Key(itemID, locationID)
		if _, dup := held[k]; dup {
			continue
		}
		keys = append(keys, k)
		held[k] = struct{}{}
	}
	return &Reservation{
		svc:        s,
		locationID: locationID,
		keys:       held,
		unlock:     s.locks.LockMany(keys),
	}
}

// Apply changes a reserved record. The item must be part of the reservation.
func (r *Reservation) Apply(ctx context.Context, in ApplyInput) (*Movement, error) {
	if in.LocationID == "" {
		in.LocationID = r.locationID
	}
	if _, ok := r.keys[Key(in.ItemID, in.LocationID)]; !ok {
		return nil, fmt.Errorf("stock %s@%s is not reserved", in.ItemID, in.LocationID)
	}
	return r.svc.applyLocked(ctx, in)
}

// Release unlocks every reserved key. Safe to call more than once.
func (r *Reservation) Release() {
	r.once.Do(r.unlock)
}
