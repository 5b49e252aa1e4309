package dto

import (
	"time"

	"salesledger/internal/core/types"
	"salesledger/internal/domain/documents"
	"salesledger/internal/domain/invoicing"
)

// SaleLineRequest is one requested line. Omitted price and tax take the
// catalog values.
type SaleLineRequest struct {
	ItemID      string         `json:"item_id" binding:"required"`
	Description string         `json:"description"`
	Quantity    types.Quantity `json:"quantity" binding:"required,gt=0"`
	UnitPrice   *types.Money   `json:"unit_price" binding:"omitempty,gte=0"`
	DiscountPct types.Percent  `json:"discount_pct" binding:"gte=0,lte=100"`
	TaxPct      *types.Percent `json:"tax_pct" binding:"omitempty,gte=0,lte=100"`
}

func (l SaleLineRequest) ToLine() invoicing.LineRequest {
	return invoicing.LineRequest{
		ItemID:      l.ItemID,
		Description: l.Description,
		Quantity:    l.Quantity,
		UnitPrice:   l.UnitPrice,
		DiscountPct: l.DiscountPct,
		TaxPct:      l.TaxPct,
	}
}

func toLines(lines []SaleLineRequest) []invoicing.LineRequest {
	out := make([]invoicing.LineRequest, len(lines))
	for i, l := range lines {
		out[i] = l.ToLine()
	}
	return out
}

// CreateSaleRequest issues a sale.
type CreateSaleRequest struct {
	BranchID        string            `json:"branch_id" binding:"required"`
	SubLocationID   string            `json:"sub_location_id"`
	WarehouseID     string            `json:"warehouse_id"`
	ClientID        string            `json:"client_id"`
	PaymentMethodID string            `json:"payment_method_id"`
	Lines           []SaleLineRequest `json:"lines" binding:"required,min=1,dive"`
	UseAdvance      types.Money       `json:"use_advance" binding:"gte=0"`
	Note            string            `json:"note"`
}

func (r *CreateSaleRequest) ToRequest() invoicing.SaleRequest {
	return invoicing.SaleRequest{
		BranchID:        r.BranchID,
		SubLocationID:   r.SubLocationID,
		WarehouseID:     r.WarehouseID,
		ClientID:        r.ClientID,
		PaymentMethodID: r.PaymentMethodID,
		Lines:           toLines(r.Lines),
		UseAdvance:      r.UseAdvance,
		Note:            r.Note,
	}
}

// QuoteRequest prices lines without issuing anything.
type QuoteRequest struct {
	Lines []SaleLineRequest `json:"lines" binding:"required,min=1,dive"`
}

func (r *QuoteRequest) ToLines() []invoicing.LineRequest {
	return toLines(r.Lines)
}

// CreateReturnRequest returns part of a sale, or voids it with reason "void".
type CreateReturnRequest struct {
	Reason string             `json:"reason" binding:"required"`
	Lines  []StockLineRequest `json:"lines" binding:"omitempty,dive"`
}

func (r *CreateReturnRequest) ToRequest(saleID string) invoicing.ReturnRequest {
	req := invoicing.ReturnRequest{SaleID: saleID, Reason: r.Reason}
	for _, l := range r.Lines {
		req.Lines = append(req.Lines, invoicing.ReturnLine{ItemID: l.ItemID, Quantity: l.Quantity})
	}
	return req
}

// SaleQuery filters the sale list.
type SaleQuery struct {
	BranchID string     `form:"branch_id"`
	ClientID string     `form:"client_id"`
	From     *time.Time `form:"from" time_format:"2006-01-02"`
	To       *time.Time `form:"to" time_format:"2006-01-02"`
	Limit    int        `form:"limit" binding:"omitempty,min=1,max=500"`
}

func (q *SaleQuery) ToFilter() documents.SaleFilter {
	return documents.SaleFilter{
		BranchID: q.BranchID,
		ClientID: q.ClientID,
		From:     q.From,
		To:       q.To,
		Limit:    q.Limit,
	}
}
