package dto

import (
	"time"

	"salesledger/internal/core/types"
	"salesledger/internal/domain/registers/stock"
)

// StockLineRequest is one item and quantity.
type StockLineRequest struct {
	ItemID   string         `json:"item_id" binding:"required"`
	Quantity types.Quantity `json:"quantity" binding:"required,gt=0"`
}

// ValidateStockRequest checks availability of lines at a location.
type ValidateStockRequest struct {
	LocationID string             `json:"location_id" binding:"required"`
	Lines      []StockLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ValidateStockResponse lists every shortage; OK when there is none.
type ValidateStockResponse struct {
	OK        bool             `json:"ok"`
	Shortages []stock.Shortage `json:"shortages"`
}

// ReceiptRequest books an inbound quantity at a unit cost.
type ReceiptRequest struct {
	ItemID     string         `json:"item_id" binding:"required"`
	LocationID string         `json:"location_id" binding:"required"`
	Quantity   types.Quantity `json:"quantity" binding:"required,gt=0"`
	UnitCost   types.Money    `json:"unit_cost" binding:"gte=0"`
	Reference  string         `json:"reference"`
}

// TransferRequest moves a quantity between locations at the source cost.
type TransferRequest struct {
	ItemID         string         `json:"item_id" binding:"required"`
	FromLocationID string         `json:"from_location_id" binding:"required"`
	ToLocationID   string         `json:"to_location_id" binding:"required,nefield=FromLocationID"`
	Quantity       types.Quantity `json:"quantity" binding:"required,gt=0"`
	Reference      string         `json:"reference"`
}

// TransferResponse holds both sides of a transfer.
type TransferResponse struct {
	Out *stock.Movement `json:"out"`
	In  *stock.Movement `json:"in"`
}

// MovementQuery filters the stock card.
type MovementQuery struct {
	ItemID     string     `form:"item_id"`
	LocationID string     `form:"location_id"`
	RecorderID string     `form:"recorder_id"`
	From       *time.Time `form:"from" time_format:"2006-01-02"`
	To         *time.Time `form:"to" time_format:"2006-01-02"`
	Limit      int        `form:"limit" binding:"omitempty,min=1,max=1000"`
}

func (q *MovementQuery) ToFilter() stock.MovementFilter {
	return stock.MovementFilter{
		ItemID:     q.ItemID,
		LocationID: q.LocationID,
		RecorderID: q.RecorderID,
		From:       q.From,
		To:         q.To,
		Limit:      q.Limit,
	}
}
