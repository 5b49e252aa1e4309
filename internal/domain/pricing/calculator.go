// Package pricing computes line and document totals. It holds no state.
package pricing

import (
	"fmt"

	"salesledger/internal/core/apperror"
	"salesledger/internal/core/types"
)

// Line is the pricing input of one document line.
type Line struct {
	ItemID      string         `json:"item_id"`
	Quantity    types.Quantity `json:"quantity"`
	UnitPrice   types.Money    `json:"unit_price"`
	DiscountPct types.Percent  `json:"discount_pct"`
	TaxPct      types.Percent  `json:"tax_pct"`
}

// LineTotals are the priced amounts of one line, rounded to the currency unit.
type LineTotals struct {
	ItemID   string      `json:"item_id"`
	Base     types.Money `json:"base"`
	Discount types.Money `json:"discount"`
	Subtotal types.Money `json:"subtotal"`
	Tax      types.Money `json:"tax"`
	Total    types.Money `json:"total"`
}

// Totals are the document amounts. Total == Subtotal + TotalTax exactly.
type Totals struct {
	Subtotal      types.Money  `json:"subtotal"`
	TotalDiscount types.Money  `json:"total_discount"`
	TotalTax      types.Money  `json:"total_tax"`
	Total         types.Money  `json:"total"`
	Lines         []LineTotals `json:"lines"`
}

// ValidateLine checks quantity > 0, price >= 0 and both percentages in [0,100].
func ValidateLine(l Line) error {
	switch {
	case !l.Quantity.IsPositive():
		return apperror.NewValidation("quantity must be positive").WithDetail("item_id", l.ItemID)
	case l.Quantity > types.MaxQuantity:
		return apperror.NewValidation("quantity exceeds the maximum").
			WithDetail("item_id", l.ItemID).
			WithDetail("max", types.MaxQuantity.String())
	case l.UnitPrice.IsNegative():
		return apperror.NewValidation("unit price must not be negative").WithDetail("item_id", l.ItemID)
	case !types.ValidPercent(l.DiscountPct):
		return apperror.NewValidation("discount must be between 0 and 100").WithDetail("item_id", l.ItemID)
	case !types.ValidPercent(l.TaxPct):
		return apperror.NewValidation("tax must be between 0 and 100").WithDetail("item_id", l.ItemID)
	}
	return nil
}

// Validate checks every line and a non-empty list.
func Validate(lines []Line) error {
	if len(lines) == 0 {
		return apperror.NewValidation("at least one line is required")
	}
	for i, l := range lines {
		if err := ValidateLine(l); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("line", i)
			}
			return fmt.Errorf("line %d: %w", i, err)
		}
	}
	return nil
}

// PriceLine computes base = qty*price, the discount on base, and the tax on
// the discounted subtotal. Each amount is rounded before the next is derived.
func PriceLine(l Line) LineTotals {
	base := types.RoundMoney(l.Quantity.Decimal().Mul(l.UnitPrice))
	discount := types.RoundMoney(types.ApplyPercent(base, l.DiscountPct))
	subtotal := base.Sub(discount)
	tax := types.RoundMoney(types.ApplyPercent(subtotal, l.TaxPct))
	return LineTotals{
		ItemID:   l.ItemID,
		Base:     base,
		Discount: discount,
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

// Calculate prices every line and sums the results.
func Calculate(lines []Line) Totals {
	t := Totals{
		Subtotal:      types.Zero(),
		TotalDiscount: types.Zero(),
		TotalTax:      types.Zero(),
		Total:         types.Zero(),
		Lines:         make([]LineTotals, 0, len(lines)),
	}
	for _, l := range lines {
		lt := PriceLine(l)
		t.Lines = append(t.Lines, lt)
		t.Subtotal = t.Subtotal.Add(lt.Subtotal)
		t.TotalDiscount = t.TotalDiscount.Add(lt.Discount)
		t.TotalTax = t.TotalTax.Add(lt.Tax)
	}
	t.Total = t.Subtotal.Add(t.TotalTax)
	return t
}
