package stock

import (
	"context"
	"fmt"
	"time"

	"salesledger/internal/core/apperror"
	"salesledger/internal/core/id"
	"salesledger/internal/core/keylock"
	"salesledger/internal/core/types"
	"salesledger/pkg/logger"
)

// Service is the only writer of stock records. Every change to one
// (item, location) pair is serialized on that pair's key.
type Service struct {
	repo   Repository
	locks  *keylock.Locker
	policy Policy
	now    func() time.Time
}

// NewService creates the ledger. A nil policy forbids negative stock everywhere.
func NewService(repo Repository, policy Policy) *Service {
	if policy == nil {
		policy = NegativeStockLocations{}
	}
	return &Service{
		repo:   repo,
		locks:  keylock.New(),
		policy: policy,
		now:    time.Now,
	}
}

// WithClock overrides time.Now.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AllowsNegativeStock exposes the location policy.
func (s *Service) AllowsNegativeStock(locationID string) bool {
	return s.policy.AllowsNegativeStock(locationID)
}

// GetRecord returns the record of a pair, zero-valued when absent.
func (s *Service) GetRecord(ctx context.Context, itemID, locationID string) (Record, error) {
	rec, err := s.repo.Get(ctx, itemID, locationID)
	if err != nil {
		return Record{}, fmt.Errorf("get stock %s@%s: %w", itemID, locationID, err)
	}
	if rec == nil {
		return Record{ItemID: itemID, LocationID: locationID, AvgCost: types.Zero()}, nil
	}
	return *rec, nil
}

// GetQuantity returns the on-hand quantity.
func (s *Service) GetQuantity(ctx context.Context, itemID, locationID string) (types.Quantity, error) {
	rec, err := s.GetRecord(ctx, itemID, locationID)
	return rec.Quantity, err
}

// GetCost returns the weighted-average unit cost.
func (s *Service) GetCost(ctx context.Context, itemID, locationID string) (types.Money, error) {
	rec, err := s.GetRecord(ctx, itemID, locationID)
	return rec.AvgCost, err
}

// Validate returns one Shortage per controlled item whose summed requested
// quantity exceeds what is on hand. Non-controlled lines are ignored, and a
// location that allows negative stock never reports shortages.
func (s *Service) Validate(ctx context.Context, locationID string, reqs []Requirement) ([]Shortage, error) {
	if s.policy.AllowsNegativeStock(locationID) {
		return nil, nil
	}

	order, totals := aggregate(reqs)
	var shortages []Shortage
	for _, itemID := range order {
		available, err := s.GetQuantity(ctx, itemID, locationID)
		if err != nil {
			return nil, err
		}
		if totals[itemID] > available {
			shortages = append(shortages, Shortage{
				ItemID:     itemID,
				LocationID: locationID,
				Requested:  totals[itemID],
				Available:  available,
			})
		}
	}
	return shortages, nil
}

// ApplyInput describes one stock change.
type ApplyInput struct {
	ItemID       string
	LocationID   string
	Quantity     types.Quantity
	UnitCost     types.Money // used on receipts only
	Direction    Direction
	RecorderType string
	RecorderID   string
}

// Apply changes one record under its key lock.
func (s *Service) Apply(ctx context.Context, in ApplyInput) (*Movement, error) {
	unlock := s.locks.Lock(Key(in.ItemID, in.LocationID))
	defer unlock()
	return s.applyLocked(ctx, in)
}

// Receive books an inbound quantity at unitCost.
func (s *Service) Receive(ctx context.Context, itemID, locationID string, qty types.Quantity, unitCost types.Money, recorderType, recorderID string) (*Movement, error) {
	return s.Apply(ctx, ApplyInput{
		ItemID:       itemID,
		LocationID:   locationID,
		Quantity:     qty,
		UnitCost:     unitCost,
		Direction:    Receipt,
		RecorderType: recorderType,
		RecorderID:   recorderID,
	})
}

// applyLocked requires the caller to hold the key of (in.ItemID, in.LocationID).
//
// Receipts blend into the average: (oldQty*oldCost + qty*unitCost) / (oldQty+qty).
// Expenses leave the average untouched and floor the quantity at zero unless
// the location allows negative stock.
func (s *Service) applyLocked(ctx context.Context, in ApplyInput) (*Movement, error) {
	if !in.Quantity.IsPositive() {
		return nil, apperror.NewValidation("stock movement quantity must be positive").
			WithDetail("item_id", in.ItemID).
			WithDetail("quantity", in.Quantity)
	}
	if in.Direction == Receipt && in.UnitCost.IsNegative() {
		return nil, apperror.NewValidation("unit cost must not be negative").WithDetail("item_id", in.ItemID)
	}

	rec, err := s.repo.Get(ctx, in.ItemID, in.LocationID)
	if err != nil {
		return nil, fmt.Errorf("get stock %s@%s: %w", in.ItemID, in.LocationID, err)
	}
	if rec == nil {
		rec = &Record{ItemID: in.ItemID, LocationID: in.LocationID, AvgCost: types.Zero()}
	}

	now := s.now().UTC()
	mv := &Movement{
		ID:           id.NewMovementID(),
		ItemID:       in.ItemID,
		LocationID:   in.LocationID,
		Direction:    in.Direction,
		Quantity:     in.Quantity,
		RecorderType: in.RecorderType,
		RecorderID:   in.RecorderID,
		Period:       now,
	}

	switch in.Direction {
	case Receipt:
		newQty := rec.Quantity + in.Quantity
		if rec.Quantity <= 0 || newQty <= 0 {
			rec.AvgCost = types.RoundCost(in.UnitCost)
		} else {
			total := rec.Quantity.Decimal().Mul(rec.AvgCost).Add(in.Quantity.Decimal().Mul(in.UnitCost))
			rec.AvgCost = total.DivRound(newQty.Decimal(), types.CostScale)
		}
		rec.Quantity = newQty
		mv.UnitCost = in.UnitCost
	case Expense:
		newQty := rec.Quantity - in.Quantity
		if newQty < 0 && !s.policy.AllowsNegativeStock(in.LocationID) {
			logger.Warn(ctx, "stock decrease clamped at zero",
				"item_id", in.ItemID,
				"location_id", in.LocationID,
				"on_hand", rec.Quantity,
				"requested", in.Quantity,
			)
			newQty = 0
			mv.Clamped = true
		}
		rec.Quantity = newQty
		mv.UnitCost = rec.AvgCost
	default:
		return nil, apperror.NewValidation("unknown stock direction").WithDetail("direction", in.Direction)
	}

	rec.UpdatedAt = now
	mv.BalanceQty = rec.Quantity
	mv.BalanceCost = rec.AvgCost

	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save stock %s@%s: %w", in.ItemID, in.LocationID, err)
	}
	if err := s.repo.AppendMovement(ctx, mv); err != nil {
		return nil, fmt.Errorf("append stock movement: %w", err)
	}
	return mv, nil
}

// TransferInput moves quantity between two locations.
type TransferInput struct {
	ItemID         string
	FromLocationID string
	ToLocationID   string
	Quantity       types.Quantity
	RecorderID     string
}

// Transfer decreases the source and increases the destination at the
// source's current average cost. Both keys are held for the whole move.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (out *Movement, inbound *Movement, err error) {
	if in.FromLocationID == in.ToLocationID {
		return nil, nil, apperror.NewValidation("transfer source and destination must differ")
	}

	unlock := s.locks.LockMany([]string{Key(in.ItemID, in.FromLocationID), Key(in.ItemID, in.ToLocationID)})
	defer unlock()

	shortages, err := s.Validate(ctx, in.FromLocationID, []Requirement{{ItemID: in.ItemID, Quantity: in.Quantity, Controlled: true}})
	if err != nil {
		return nil, nil, err
	}
	if len(shortages) > 0 {
		return nil, nil, ShortageError(shortages)
	}

	cost, err := s.GetCost(ctx, in.ItemID, in.FromLocationID)
	if err != nil {
		return nil, nil, err
	}

	out, err = s.applyLocked(ctx, ApplyInput{
		ItemID:       in.ItemID,
		LocationID:   in.FromLocationID,
		Quantity:     in.Quantity,
		Direction:    Expense,
		RecorderType: "transfer",
		RecorderID:   in.RecorderID,
	})
	if err != nil {
		return nil, nil, err
	}
	inbound, err = s.applyLocked(ctx, ApplyInput{
		ItemID:       in.ItemID,
		LocationID:   in.ToLocationID,
		Quantity:     in.Quantity,
		UnitCost:     cost,
		Direction:    Receipt,
		RecorderType: "transfer",
		RecorderID:   in.RecorderID,
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Info(ctx, "stock transferred",
		"item_id", in.ItemID,
		"from", in.FromLocationID,
		"to", in.ToLocationID,
		"quantity", in.Quantity,
	)
	return out, inbound, nil
}

// ListMovements returns the stock card.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]*Movement, error) {
	return s.repo.ListMovements(ctx, filter)
}

// ListByLocation returns every record of a location.
func (s *Service) ListByLocation(ctx context.Context, locationID string) ([]*Record, error) {
	return s.repo.ListByLocation(ctx, locationID)
}

func aggregate(reqs []Requirement) ([]string, map[string]types.Quantity) {
	order := make([]string, 0, len(reqs))
	totals := make(map[string]types.Quantity, len(reqs))
	for _, r := range reqs {
		if !r.Controlled {
			continue
		}
		if _, seen := totals[r.ItemID]; !seen {
			order = append(order, r.ItemID)
		}
		totals[r.ItemID] = types.SumQuantities(totals[r.ItemID], r.Quantity)
	}
	return order, totals
}
