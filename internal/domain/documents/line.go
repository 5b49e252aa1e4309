// Package documents provides the sale and return documents issued by the
// engine, and the repositories that store them.
package documents

import (
	"salesledger/internal/core/types"
	"salesledger/internal/domain/accounting"
	"salesledger/internal/domain/pricing"
)

// LineItem is one document line. Prices, rates, cost and accounts are
// snapshotted when the document is issued.
type LineItem struct {
	LineNo      int                     `json:"line_no"`
	ItemID      string                  `json:"item_id"`
	Description string                  `json:"description,omitempty"`
	Quantity    types.Quantity          `json:"quantity"`
	UnitPrice   types.Money             `json:"unit_price"`
	DiscountPct types.Percent           `json:"discount_pct"`
	TaxPct      types.Percent           `json:"tax_pct"`
	UnitCost    types.Money             `json:"unit_cost"`
	Controlled  bool                    `json:"controlled"`
	Accounts    accounting.ItemAccounts `json:"accounts"`

	Discount types.Money `json:"discount"`
	Subtotal types.Money `json:"subtotal"`
	Tax      types.Money `json:"tax"`
	Total    types.Money `json:"total"`
}

// PricingLine returns the calculator input of the line.
func (l LineItem) PricingLine() pricing.Line {
	return pricing.Line{
		ItemID:      l.ItemID,
		Quantity:    l.Quantity,
		UnitPrice:   l.UnitPrice,
		DiscountPct: l.DiscountPct,
		TaxPct:      l.TaxPct,
	}
}

// ApplyTotals copies priced amounts onto the line.
func (l *LineItem) ApplyTotals(t pricing.LineTotals) {
	l.Discount = t.Discount
	l.Subtotal = t.Subtotal
	l.Tax = t.Tax
	l.Total = t.Total
}

// Priced returns the posting input of the line.
func (l LineItem) Priced() accounting.PricedLine {
	return accounting.PricedLine{
		ItemID:     l.ItemID,
		Quantity:   l.Quantity,
		Subtotal:   l.Subtotal,
		Tax:        l.Tax,
		UnitCost:   l.UnitCost,
		Controlled: l.Controlled,
		Accounts:   l.Accounts,
	}
}

// CostAmount returns quantity*unitCost for controlled lines, zero otherwise.
func (l LineItem) CostAmount() types.Money {
	if !l.Controlled {
		return types.Zero()
	}
	return l.Priced().CostAmount()
}

// Totals are the document amounts.
type Totals struct {
	Subtotal      types.Money `json:"subtotal"`
	TotalDiscount types.Money `json:"total_discount"`
	TotalTax      types.Money `json:"total_tax"`
	Total         types.Money `json:"total"`
	CostTotal     types.Money `json:"cost_total"`
}

// PriceLines prices lines in place and returns the document totals.
func PriceLines(lines []LineItem) Totals {
	input := make([]pricing.Line, len(lines))
	for i, l := range lines {
		input[i] = l.PricingLine()
	}
	calc := pricing.Calculate(input)

	cost := types.Zero()
	for i := range lines {
		lines[i].ApplyTotals(calc.Lines[i])
		cost = cost.Add(lines[i].CostAmount())
	}
	return Totals{
		Subtotal:      calc.Subtotal,
		TotalDiscount: calc.TotalDiscount,
		TotalTax:      calc.TotalTax,
		Total:         calc.Total,
		CostTotal:     cost,
	}
}

// PricedLines converts lines for the posting generator.
func PricedLines(lines []LineItem) []accounting.PricedLine {
	out := make([]accounting.PricedLine, len(lines))
	for i, l := range lines {
		out[i] = l.Priced()
	}
	return out
}

// Quote is a priced set of lines that was not issued.
type Quote struct {
	Lines  []LineItem `json:"lines"`
	Totals Totals     `json:"totals"`
}
