// Package numbering implements the numbering authority: numbered resolutions
// that license a prefix and a sequential range of document numbers per
// location, document kind and validity window.
package numbering

import (
	"strings"
	"time"

	"salesledger/internal/core/apperror"
)

// Kind is the document kind a resolution licenses.
type Kind string

const (
	KindSale   Kind = "sale"
	KindCredit Kind = "credit"
	KindDebit  Kind = "debit"
)

// Valid reports whether k is a known document kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSale, KindCredit, KindDebit:
		return true
	}
	return false
}

// Location identifies a branch and, optionally, a sub-location inside it
// (a till, a warehouse counter).
type Location struct {
	BranchID      string `json:"branch_id"`
	SubLocationID string `json:"sub_location_id,omitempty"`
}

// Resolution is a license to issue documents of one kind within [RangeFrom, RangeTo].
// Current is the next number to be issued; RangeTo+1 means exhausted.
type Resolution struct {
	ID            string    `json:"id" db:"id"`
	BranchID      string    `json:"branch_id" db:"branch_id"`
	SubLocationID string    `json:"sub_location_id,omitempty" db:"sub_location_id"`
	Kind          Kind      `json:"kind" db:"kind"`
	Prefix        string    `json:"prefix" db:"prefix"`
	AuthorityRef  string    `json:"authority_ref,omitempty" db:"authority_ref"`
	RangeFrom     int64     `json:"range_from" db:"range_from"`
	RangeTo       int64     `json:"range_to" db:"range_to"`
	Current       int64     `json:"current" db:"current_number"`
	ValidFrom     time.Time `json:"valid_from" db:"valid_from"`
	ValidUntil    time.Time `json:"valid_until" db:"valid_until"`
	Active        bool      `json:"active" db:"active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Validate checks structural invariants.
func (r *Resolution) Validate() error {
	if strings.TrimSpace(r.BranchID) == "" {
		return apperror.NewValidation("branch_id is required")
	}
	if !r.Kind.Valid() {
		return apperror.NewValidation("unknown document kind").WithDetail("kind", r.Kind)
	}
	if strings.TrimSpace(r.Prefix) == "" {
		return apperror.NewValidation("prefix is required")
	}
	if strings.Contains(r.Prefix, "-") {
		return apperror.NewValidation("prefix must not contain '-'").WithDetail("prefix", r.Prefix)
	}
	if r.RangeFrom < 1 || r.RangeFrom > r.RangeTo {
		return apperror.NewValidation("range must satisfy 1 <= from <= to").
			WithDetail("range_from", r.RangeFrom).
			WithDetail("range_to", r.RangeTo)
	}
	if r.Current < r.RangeFrom || r.Current > r.RangeTo+1 {
		return apperror.NewValidation("current number must lie within [from, to+1]").
			WithDetail("current", r.Current)
	}
	if r.ValidUntil.Before(r.ValidFrom) {
		return apperror.NewValidation("valid_until precedes valid_from")
	}
	return nil
}

// Remaining returns how many numbers can still be issued.
func (r *Resolution) Remaining() int64 {
	if r.Current > r.RangeTo {
		return 0
	}
	return r.RangeTo - r.Current + 1
}

// Exhausted reports whether every number in the range was issued.
func (r *Resolution) Exhausted() bool {
	return r.Current > r.RangeTo
}

// Covers reports whether day falls inside the validity window (both ends inclusive).
func (r *Resolution) Covers(day time.Time) bool {
	d := dateOnly(day)
	return !d.Before(dateOnly(r.ValidFrom)) && !d.After(dateOnly(r.ValidUntil))
}

// Usable reports whether numbers may be issued on day.
func (r *Resolution) Usable(day time.Time) bool {
	return r.Active && r.Covers(day) && !r.Exhausted()
}

// Matches reports whether the resolution applies to loc. A resolution without
// a sub-location applies to the whole branch.
func (r *Resolution) Matches(loc Location) bool {
	if r.BranchID != loc.BranchID {
		return false
	}
	return r.SubLocationID == "" || r.SubLocationID == loc.SubLocationID
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(dateOnly(b).Sub(dateOnly(a)).Hours() / 24)
}

// SameDay reports whether a and b share a calendar date.
func SameDay(a, b time.Time) bool {
	return dateOnly(a).Equal(dateOnly(b))
}
