package accounting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesledger/internal/core/apperror"
	"salesledger/internal/core/types"
)

var plan = AccountPlan{
	Receivable:         "1305",
	ClientAdvance:      "2805",
	TaxPayable:         "2408",
	DefaultIncome:      "4135",
	DefaultCostOfSales: "6135",
	DefaultInventory:   "1435",
}

func m(s string) types.Money { return types.MustMoney(s) }

func line(account string, qty int64, subtotal, tax, unitCost string, controlled bool) PricedLine {
	return PricedLine{
		ItemID:     "sku",
		Quantity:   types.NewQuantity(qty),
		Subtotal:   m(subtotal),
		Tax:        m(tax),
		UnitCost:   m(unitCost),
		Controlled: controlled,
		Accounts:   ItemAccounts{Income: account},
	}
}

type wantLine struct {
	account string
	debit   string
	credit  string
}

func assertLines(t *testing.T, p *Posting, want []wantLine) {
	t.Helper()
	require.Len(t, p.Lines, len(want))
	for i, w := range want {
		assert.Equal(t, w.account, p.Lines[i].Account, "line %d", i)
		assert.True(t, p.Lines[i].Debit.Equal(m(w.debit)), "line %d debit %s", i, p.Lines[i].Debit)
		assert.True(t, p.Lines[i].Credit.Equal(m(w.credit)), "line %d credit %s", i, p.Lines[i].Credit)
	}
	require.NoError(t, p.CheckBalance())
}

func TestGenerateSaleGroupsIncomeAccounts(t *testing.T) {
	g := NewGenerator(plan)

	p, err := g.Generate(Event{
		Kind:       EventSale,
		DocumentID: "FE-001",
		Date:       time.Now(),
		Amount:     m("1190"),
		Lines: []PricedLine{
			line("4135", 1, "300", "57", "100", true),
			line("4140", 1, "200", "38", "50", true),
			line("4135", 1, "500", "95", "0", false),
		},
		PaymentAccount: "1105",
	})
	require.NoError(t, err)

	assertLines(t, p, []wantLine{
		{"1105", "1190", "0"},
		{"4135", "0", "800"},
		{"4140", "0", "200"},
		{"2408", "0", "190"},
	})
	assert.Equal(t, EventSale, p.Kind)
	assert.Equal(t, "FE-001", p.DocumentID)
}

func TestGenerateSaleDefaultsToReceivableAndSplitsAdvance(t *testing.T) {
	g := NewGenerator(plan)

	p, err := g.Generate(Event{
		Kind:           EventSale,
		DocumentID:     "FE-002",
		Amount:         m("119"),
		AdvanceApplied: m("19"),
		Lines:          []PricedLine{{Quantity: types.NewQuantity(1), Subtotal: m("100"), Tax: m("19")}},
	})
	require.NoError(t, err)

	assertLines(t, p, []wantLine{
		{"2805", "19", "0"},
		{"1305", "100", "0"},
		{"4135", "0", "100"},
		{"2408", "0", "19"},
	})
}

func TestGenerateSaleWithoutTaxHasNoTaxLine(t *testing.T) {
	g := NewGenerator(plan)
	p, err := g.Generate(Event{
		Kind:   EventSale,
		Amount: m("100"),
		Lines:  []PricedLine{line("4135", 1, "100", "0", "0", false)},
	})
	require.NoError(t, err)
	assertLines(t, p, []wantLine{
		{"1305", "100", "0"},
		{"4135", "0", "100"},
	})
}

func TestGenerateCostOfSaleSkipsUncontrolled(t *testing.T) {
	g := NewGenerator(plan)

	p, err := g.Generate(Event{
		Kind: EventCostOfSale,
		Lines: []PricedLine{
			line("4135", 5, "0", "0", "300000", true),
			{Quantity: types.NewQuantity(2), UnitCost: m("10"), Controlled: true, Accounts: ItemAccounts{CostOfSales: "6140", Inventory: "1440"}},
			line("4135", 9, "0", "0", "1000", false),
		},
	})
	require.NoError(t, err)

	assertLines(t, p, []wantLine{
		{"6135", "1500000", "0"},
		{"6140", "20", "0"},
		{"1435", "0", "1500000"},
		{"1440", "0", "20"},
	})
}

func TestGenerateCostOfSaleAllZeroIsDiscarded(t *testing.T) {
	g := NewGenerator(plan)
	p, err := g.Generate(Event{
		Kind:  EventCostOfSale,
		Lines: []PricedLine{line("4135", 5, "0", "0", "0", true), line("4135", 5, "0", "0", "10", false)},
	})
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestGenerateReturnMirrorsSale(t *testing.T) {
	g := NewGenerator(plan)
	lines := []PricedLine{line("4135", 2, "1000000", "190000", "300000", true)}

	unpaid, err := g.Generate(Event{Kind: EventReturn, DocumentID: "NC-001", Amount: m("1190000"), Lines: lines})
	require.NoError(t, err)
	assertLines(t, unpaid, []wantLine{
		{"4135", "1000000", "0"},
		{"2408", "190000", "0"},
		{"1305", "0", "1190000"},
	})

	paid, err := g.Generate(Event{Kind: EventVoid, DocumentID: "NC-002", Amount: m("1190000"), Lines: lines, OriginalPaid: true})
	require.NoError(t, err)
	assertLines(t, paid, []wantLine{
		{"4135", "1000000", "0"},
		{"2408", "190000", "0"},
		{"2805", "0", "1190000"},
	})

	rev, err := g.Generate(Event{Kind: EventCostReversal, Lines: lines})
	require.NoError(t, err)
	assertLines(t, rev, []wantLine{
		{"1435", "600000", "0"},
		{"6135", "0", "600000"},
	})
}

func TestGenerateDetectsImbalance(t *testing.T) {
	g := NewGenerator(plan)
	_, err := g.Generate(Event{
		Kind:   EventSale,
		Amount: m("120"),
		Lines:  []PricedLine{line("4135", 1, "100", "19", "0", false)},
	})
	require.Error(t, err)
	assert.True(t, Imbalanced(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "120", appErr.Details["debit"])
	assert.Equal(t, "119", appErr.Details["credit"])
}

func TestCheckBalanceRejectsTwoSidedLine(t *testing.T) {
	p := &Posting{Lines: []Line{
		{Account: "1", Debit: m("5"), Credit: m("5")},
	}}
	assert.True(t, Imbalanced(p.CheckBalance()))
}

func TestAccountPlanValidate(t *testing.T) {
	require.NoError(t, plan.Validate())
	broken := plan
	broken.TaxPayable = ""
	err := broken.Validate()
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "tax_payable", appErr.Details["account"])
}
