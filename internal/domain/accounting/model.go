// Package accounting turns business events into balanced double-entry postings.
package accounting

import (
	"time"

	"salesledger/internal/core/apperror"
	"salesledger/internal/core/types"
)

// EventKind is the business event a posting represents.
type EventKind string

const (
	EventSale         EventKind = "sale"
	EventCostOfSale   EventKind = "cost_of_sale"
	EventVoid         EventKind = "void"
	EventReturn       EventKind = "return"
	EventCostReversal EventKind = "cost_reversal"
)

// Line is one side of one account. Exactly one of Debit and Credit is positive.
type Line struct {
	Account string      `json:"account" db:"account_code"`
	Debit   types.Money `json:"debit" db:"debit"`
	Credit  types.Money `json:"credit" db:"credit"`
}

// Posting is one accounting entry.
type Posting struct {
	ID          string    `json:"id" db:"id"`
	DocumentID  string    `json:"document_id" db:"document_id"`
	Kind        EventKind `json:"kind" db:"kind"`
	Date        time.Time `json:"date" db:"posting_date"`
	Description string    `json:"description" db:"description"`
	Lines       []Line    `json:"lines" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Totals sums both sides.
func (p *Posting) Totals() (debit, credit types.Money) {
	debit, credit = types.Zero(), types.Zero()
	for _, l := range p.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// CheckBalance returns IMBALANCED_POSTING unless Σdebit == Σcredit and every
// line carries exactly one positive side.
func (p *Posting) CheckBalance() error {
	debit, credit := p.Totals()
	if !debit.Equal(credit) {
		return apperror.NewImbalancedPosting(p.DocumentID, string(p.Kind), debit.String(), credit.String())
	}
	for i, l := range p.Lines {
		if l.Debit.IsNegative() || l.Credit.IsNegative() || l.Debit.IsPositive() == l.Credit.IsPositive() {
			return apperror.NewImbalancedPosting(p.DocumentID, string(p.Kind), debit.String(), credit.String()).
				WithDetail("line", i).
				WithDetail("account", l.Account)
		}
	}
	return nil
}

// AccountBalance is the running total of one account.
type AccountBalance struct {
	Account string      `json:"account" db:"account_code"`
	Debit   types.Money `json:"debit" db:"debit"`
	Credit  types.Money `json:"credit" db:"credit"`
}

// Net returns debit - credit.
func (b AccountBalance) Net() types.Money {
	return b.Debit.Sub(b.Credit)
}
