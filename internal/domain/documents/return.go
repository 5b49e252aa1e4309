package documents

import (
	"time"

	"salesledger/internal/domain/numbering"
)

// ReasonVoid voids the whole remainder of a sale on its issue date.
const ReasonVoid = "void"

// Return is a credit document against a sale. It is never changed after
// creation except for its validation status.
type Return struct {
	ID               string             `json:"id"`
	OriginalID       string             `json:"original_id"`
	ResolutionID     string             `json:"resolution_id"`
	Location         numbering.Location `json:"location"`
	WarehouseID      string             `json:"warehouse_id"`
	ClientID         string             `json:"client_id,omitempty"`
	Reason           string             `json:"reason"`
	IssueDate        time.Time          `json:"issue_date"`
	Lines            []LineItem         `json:"lines"`
	Totals           Totals             `json:"totals"`
	CreditedAdvance  bool               `json:"credited_advance"`
	ValidationStatus ValidationStatus   `json:"validation_status"`
	ValidationNote   string             `json:"validation_note,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// IsVoid reports whether the return voids its sale.
func (r *Return) IsVoid() bool {
	return r.Reason == ReasonVoid
}
