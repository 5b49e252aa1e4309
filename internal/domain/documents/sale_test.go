package documents

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesledger/internal/core/types"
)

func q(units int64) types.Quantity { return types.NewQuantity(units) }

func saleWithLines(lines ...LineItem) *Sale {
	return &Sale{
		ID:        "FE-001",
		IssueDate: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		Lines:     lines,
		Status:    StatusIssued,
		Returned:  map[string]types.Quantity{},
	}
}

func TestSaleRemaining(t *testing.T) {
	s := saleWithLines(
		LineItem{ItemID: "A", Quantity: q(5)},
		LineItem{ItemID: "B", Quantity: q(1)},
		LineItem{ItemID: "A", Quantity: q(2)},
	)
	s.Returned["A"] = q(3)

	assert.Equal(t, q(7), s.Sold("A"))
	assert.Equal(t, q(4), s.Remaining("A"))
	assert.Equal(t, q(1), s.Remaining("B"))
	assert.Equal(t, types.Quantity(0), s.Remaining("C"))
	assert.Equal(t, []string{"A", "B"}, s.ItemIDs())
	assert.False(t, s.FullyReturned())

	s.Returned["A"] = q(7)
	s.Returned["B"] = q(1)
	assert.True(t, s.FullyReturned())
}

func TestSaleSplit(t *testing.T) {
	s := saleWithLines(
		LineItem{ItemID: "A", Quantity: q(5)},
		LineItem{ItemID: "B", Quantity: q(1)},
		LineItem{ItemID: "A", Quantity: q(2)},
	)

	tests := []struct {
		name     string
		returned types.Quantity
		qty      types.Quantity
		want     []Slice
	}{
		{"first line only", 0, q(3), []Slice{{LineIndex: 0, Quantity: q(3)}}},
		{"spills over", 0, q(6), []Slice{{LineIndex: 0, Quantity: q(5)}, {LineIndex: 2, Quantity: q(1)}}},
		{"skips taken", q(4), q(2), []Slice{{LineIndex: 0, Quantity: q(1)}, {LineIndex: 2, Quantity: q(1)}}},
		{"second line only", q(5), q(2), []Slice{{LineIndex: 2, Quantity: q(2)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.Returned["A"] = tt.returned
			assert.Equal(t, tt.want, s.Split("A", tt.qty))
		})
	}
}

func TestCanVoid(t *testing.T) {
	s := saleWithLines(LineItem{ItemID: "A", Quantity: q(1)})

	assert.True(t, CanVoid(s, s.IssueDate.Add(10*time.Hour)))
	assert.False(t, CanVoid(s, s.IssueDate.AddDate(0, 0, 1)))

	s.Status = StatusPartiallyReturned
	assert.True(t, CanVoid(s, s.IssueDate))

	s.Status = StatusVoided
	assert.False(t, CanVoid(s, s.IssueDate))
}

func TestPriceLines(t *testing.T) {
	lines := []LineItem{
		{ItemID: "A", Quantity: q(5), UnitPrice: types.MustMoney("500000"), TaxPct: types.MustMoney("19"), UnitCost: types.MustMoney("300000"), Controlled: true},
		{ItemID: "S", Quantity: q(1), UnitPrice: types.MustMoney("100"), DiscountPct: types.MustMoney("10"), UnitCost: types.MustMoney("50")},
	}

	totals := PriceLines(lines)

	require.Len(t, lines, 2)
	assert.True(t, lines[0].Total.Equal(types.MustMoney("2975000")))
	assert.True(t, lines[1].Discount.Equal(types.MustMoney("10")))
	assert.True(t, totals.Total.Equal(types.MustMoney("2975090")))
	assert.True(t, totals.TotalTax.Equal(types.MustMoney("475000")))
	assert.True(t, totals.CostTotal.Equal(types.MustMoney("1500000")), "non-controlled lines carry no cost")
}
