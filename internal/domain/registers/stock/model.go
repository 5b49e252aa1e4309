// Package stock provides the stock and costing ledger: per (item, location)
// quantity with a weighted-average unit cost, and the movement journal that
// explains every change.
package stock

import (
	"time"

	"salesledger/internal/core/apperror"
	"salesledger/internal/core/types"
)

// Direction of a stock movement.
type Direction string

const (
	Receipt Direction = "receipt" // increase
	Expense Direction = "expense" // decrease
)

// Record is the balance of one item at one location.
type Record struct {
	ItemID     string         `json:"item_id" db:"item_id"`
	LocationID string         `json:"location_id" db:"location_id"`
	Quantity   types.Quantity `json:"quantity" db:"quantity"`
	AvgCost    types.Money    `json:"avg_cost" db:"avg_cost"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}

// Key returns the lock key of the record.
func Key(itemID, locationID string) string {
	return "stock:" + itemID + "@" + locationID
}

// Movement is one line of the stock card.
type Movement struct {
	ID           string         `json:"id" db:"id"`
	ItemID       string         `json:"item_id" db:"item_id"`
	LocationID   string         `json:"location_id" db:"location_id"`
	Direction    Direction      `json:"direction" db:"direction"`
	Quantity     types.Quantity `json:"quantity" db:"quantity"`
	UnitCost     types.Money    `json:"unit_cost" db:"unit_cost"`
	BalanceQty   types.Quantity `json:"balance_qty" db:"balance_qty"`
	BalanceCost  types.Money    `json:"balance_cost" db:"balance_cost"`
	Clamped      bool           `json:"clamped,omitempty" db:"clamped"`
	RecorderType string         `json:"recorder_type" db:"recorder_type"`
	RecorderID   string         `json:"recorder_id" db:"recorder_id"`
	Period       time.Time      `json:"period" db:"period"`
}

// Requirement is the stock need of one line.
type Requirement struct {
	ItemID     string
	Quantity   types.Quantity
	Controlled bool
}

// Shortage describes one item that cannot be covered.
type Shortage struct {
	ItemID     string         `json:"item_id"`
	LocationID string         `json:"location_id"`
	Requested  types.Quantity `json:"requested"`
	Available  types.Quantity `json:"available"`
}

// Missing returns requested - available.
func (s Shortage) Missing() types.Quantity {
	return s.Requested - s.Available
}

// ShortageError wraps every shortage of one request into a single INSUFFICIENT_STOCK error.
func ShortageError(shortages []Shortage) error {
	if len(shortages) == 0 {
		return nil
	}
	return apperror.NewInsufficientStock(len(shortages)).WithDetail("shortages", shortages)
}

// ShortagesOf extracts the shortages carried by an INSUFFICIENT_STOCK error.
func ShortagesOf(err error) []Shortage {
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeInsufficientStock {
		return nil
	}
	s, _ := appErr.Details["shortages"].([]Shortage)
	return s
}

// Policy tells which locations may hold negative stock.
type Policy interface {
	AllowsNegativeStock(locationID string) bool
}

// NegativeStockLocations is a static Policy.
type NegativeStockLocations map[string]bool

// AllowsNegativeStock implements Policy.
func (n NegativeStockLocations) AllowsNegativeStock(locationID string) bool {
	return n[locationID]
}

// NewNegativeStockLocations builds a Policy from a list of location ids.
func NewNegativeStockLocations(ids []string) NegativeStockLocations {
	out := make(NegativeStockLocations, len(ids))
	for _, id := range ids {
		if id != "" {
			out[id] = true
		}
	}
	return out
}
