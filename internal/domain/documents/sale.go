package documents

import (
	"time"

	"salesledger/internal/core/types"
	"salesledger/internal/domain/numbering"
)

// Status is the return lifecycle of a sale.
type Status string

const (
	StatusIssued            Status = "issued"
	StatusPartiallyReturned Status = "partially_returned"
	StatusVoided            Status = "voided"
)

// ValidationStatus is the outcome of the external fiscal validation.
type ValidationStatus string

const (
	ValidationPending  ValidationStatus = "pending"
	ValidationApproved ValidationStatus = "approved"
	ValidationRejected ValidationStatus = "rejected"
)

// Final reports whether the validation has completed.
func (v ValidationStatus) Final() bool {
	return v == ValidationApproved || v == ValidationRejected
}

// Sale is an issued sale document. ID is the authority-issued number.
type Sale struct {
	ID               string             `json:"id"`
	ResolutionID     string             `json:"resolution_id"`
	Location         numbering.Location `json:"location"`
	WarehouseID      string             `json:"warehouse_id"`
	ClientID         string             `json:"client_id,omitempty"`
	PaymentMethodID  string             `json:"payment_method_id,omitempty"`
	IssueDate        time.Time          `json:"issue_date"`
	Lines            []LineItem         `json:"lines"`
	Totals           Totals             `json:"totals"`
	AdvanceApplied   types.Money        `json:"advance_applied"`
	Paid             bool               `json:"paid"`
	Status           Status             `json:"status"`
	ValidationStatus ValidationStatus   `json:"validation_status"`
	ValidationNote   string             `json:"validation_note,omitempty"`
	Note             string             `json:"note,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`

	// Returned accumulates quantities returned per item.
	Returned map[string]types.Quantity `json:"returned"`
}

// Sold returns the quantity of item across all lines.
func (s *Sale) Sold(itemID string) types.Quantity {
	var q types.Quantity
	for _, l := range s.Lines {
		if l.ItemID == itemID {
			q = types.SumQuantities(q, l.Quantity)
		}
	}
	return q
}

// Remaining returns the quantity of item that can still be returned.
func (s *Sale) Remaining(itemID string) types.Quantity {
	return s.Sold(itemID) - s.Returned[itemID]
}

// FullyReturned reports whether every line was returned.
func (s *Sale) FullyReturned() bool {
	for _, itemID := range s.ItemIDs() {
		if s.Remaining(itemID) > 0 {
			return false
		}
	}
	return true
}

// ItemIDs lists the distinct items in line order.
func (s *Sale) ItemIDs() []string {
	seen := make(map[string]struct{}, len(s.Lines))
	out := make([]string, 0, len(s.Lines))
	for _, l := range s.Lines {
		if _, ok := seen[l.ItemID]; ok {
			continue
		}
		seen[l.ItemID] = struct{}{}
		out = append(out, l.ItemID)
	}
	return out
}

// Slice is the part of one original line covered by a return.
type Slice struct {
	LineIndex int
	Quantity  types.Quantity
}

// Split distributes qty of item over the sale lines holding that item, in
// line order, skipping what earlier returns already took. The caller checks
// qty against Remaining first.
func (s *Sale) Split(itemID string, qty types.Quantity) []Slice {
	taken := s.Returned[itemID]
	var out []Slice
	for i, l := range s.Lines {
		if l.ItemID != itemID || qty <= 0 {
			continue
		}
		free := l.Quantity
		if taken > 0 {
			used := types.MinQuantity(taken, free)
			taken -= used
			free -= used
		}
		if free <= 0 {
			continue
		}
		part := types.MinQuantity(free, qty)
		out = append(out, Slice{LineIndex: i, Quantity: part})
		qty -= part
	}
	return out
}

// CanVoid reports whether doc may still be voided on today: only on its
// issue date, read in today's time zone, and only once.
func CanVoid(doc *Sale, today time.Time) bool {
	return doc.Status != StatusVoided && numbering.SameDay(doc.IssueDate.In(today.Location()), today)
}
