package accounting

import (
	"fmt"
	"time"

	"salesledger/internal/core/apperror"
	"salesledger/internal/core/id"
	"salesledger/internal/core/types"
)

// PricedLine is a document line after pricing and costing.
type PricedLine struct {
	ItemID     string
	Quantity   types.Quantity
	Subtotal   types.Money
	Tax        types.Money
	UnitCost   types.Money
	Controlled bool
	Accounts   ItemAccounts
}

// CostAmount returns quantity*unitCost rounded to the currency unit.
func (l PricedLine) CostAmount() types.Money {
	return types.RoundMoney(l.Quantity.Decimal().Mul(l.UnitCost))
}

// Event is the input of Generate.
//
// Amount is the document total for sale, void and return events and is
// booked on the single header side; it must equal Σsubtotal + Σtax of the
// lines. Cost events derive their amounts from the lines and ignore it.
type Event struct {
	Kind        EventKind
	DocumentID  string
	Date        time.Time
	Description string
	Amount      types.Money
	Lines       []PricedLine

	// PaymentAccount is debited on a sale; empty means the receivable account.
	PaymentAccount string
	// AdvanceApplied is the part of a sale settled from the client's advance.
	AdvanceApplied types.Money
	// OriginalPaid routes a void/return credit to the advance account.
	OriginalPaid bool
}

// Generator builds postings from events. Lines are merged per account and
// side, in first-seen order.
type Generator struct {
	plan  AccountPlan
	newID func() string
	now   func() time.Time
}

// NewGenerator creates a generator over an account plan.
func NewGenerator(plan AccountPlan) *Generator {
	return &Generator{plan: plan, newID: id.NewPostingID, now: time.Now}
}

// Plan returns the account plan.
func (g *Generator) Plan() AccountPlan {
	return g.plan
}

// Generate builds the posting of ev. It returns (nil, nil) when every amount is zero
// and IMBALANCED_POSTING when the result does not balance.
func (g *Generator) Generate(ev Event) (*Posting, error) {
	b := newBuilder()

	switch ev.Kind {
	case EventSale:
		g.sale(b, ev)
	case EventVoid, EventReturn:
		g.reversal(b, ev)
	case EventCostOfSale:
		g.cost(b, ev, false)
	case EventCostReversal:
		g.cost(b, ev, true)
	default:
		return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	if b.empty() {
		return nil, nil
	}

	p := &Posting{
		ID:          g.newID(),
		DocumentID:  ev.DocumentID,
		Kind:        ev.Kind,
		Date:        ev.Date,
		Description: ev.Description,
		Lines:       b.lines(),
		CreatedAt:   g.now().UTC(),
	}
	if err := p.CheckBalance(); err != nil {
		return nil, err
	}
	return p, nil
}

// Sale: debit payment (or receivable) and advance; credit income per account and tax payable.
func (g *Generator) sale(b *builder, ev Event) {
	header := ev.PaymentAccount
	if header == "" {
		header = g.plan.Receivable
	}
	advance := ev.AdvanceApplied
	if advance.IsPositive() {
		b.debit(g.plan.ClientAdvance, advance)
	}
	b.debit(header, ev.Amount.Sub(advance))

	tax := types.Zero()
	for _, l := range ev.Lines {
		b.credit(g.plan.resolve(l.Accounts).Income, l.Subtotal)
		tax = tax.Add(l.Tax)
	}
	b.credit(g.plan.TaxPayable, tax)
}

// Void/return: mirror of sale on the returned lines.
func (g *Generator) reversal(b *builder, ev Event) {
	tax := types.Zero()
	for _, l := range ev.Lines {
		b.debit(g.plan.resolve(l.Accounts).Income, l.Subtotal)
		tax = tax.Add(l.Tax)
	}
	b.debit(g.plan.TaxPayable, tax)

	header := g.plan.Receivable
	if ev.OriginalPaid {
		header = g.plan.ClientAdvance
	}
	b.credit(header, ev.Amount)
}

// Cost of sale: debit cost of sales, credit inventory, controlled lines only.
// The reversal swaps the sides.
func (g *Generator) cost(b *builder, ev Event, reverse bool) {
	for _, l := range ev.Lines {
		if !l.Controlled {
			continue
		}
		acc := g.plan.resolve(l.Accounts)
		amount := l.CostAmount()
		if reverse {
			b.debit(acc.Inventory, amount)
		} else {
			b.debit(acc.CostOfSales, amount)
		}
	}
	for _, l := range ev.Lines {
		if !l.Controlled {
			continue
		}
		acc := g.plan.resolve(l.Accounts)
		amount := l.CostAmount()
		if reverse {
			b.credit(acc.CostOfSales, amount)
		} else {
			b.credit(acc.Inventory, amount)
		}
	}
}

type sideKey struct {
	account string
	debit   bool
}

// builder is an ordered map from (account, side) to amount.
type builder struct {
	order   []sideKey
	amounts map[sideKey]types.Money
}

func newBuilder() *builder {
	return &builder{amounts: make(map[sideKey]types.Money)}
}

func (b *builder) add(k sideKey, amount types.Money) {
	if amount.IsZero() {
		return
	}
	cur, ok := b.amounts[k]
	if !ok {
		b.order = append(b.order, k)
		cur = types.Zero()
	}
	b.amounts[k] = cur.Add(amount)
}

func (b *builder) debit(account string, amount types.Money) {
	b.add(sideKey{account: account, debit: true}, amount)
}

func (b *builder) credit(account string, amount types.Money) {
	b.add(sideKey{account: account, debit: false}, amount)
}

func (b *builder) empty() bool {
	for _, k := range b.order {
		if !b.amounts[k].IsZero() {
			return false
		}
	}
	return true
}

func (b *builder) lines() []Line {
	out := make([]Line, 0, len(b.order))
	for _, k := range b.order {
		amt := b.amounts[k]
		if amt.IsZero() {
			continue
		}
		l := Line{Account: k.account, Debit: types.Zero(), Credit: types.Zero()}
		if k.debit {
			l.Debit = amt
		} else {
			l.Credit = amt
		}
		out = append(out, l)
	}
	return out
}

// Imbalanced reports whether err is an IMBALANCED_POSTING error.
func Imbalanced(err error) bool {
	return apperror.HasCode(err, apperror.CodeImbalancedPosting)
}
