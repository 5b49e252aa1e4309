// Package id generates the identifiers of engine records.
//
// Postings, stock movements and validation tasks use TypeIDs ("pst_01h2x...").
// They are K-sortable (UUIDv7-based) and carry the record type in the prefix.
// Documents are identified by
// their authority-issued number instead and never pass through this package.
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the record type encoded in an id.
type Prefix string

const (
	PrefixPosting    Prefix = "pst" // accounting entry
	PrefixMovement   Prefix = "mv"  // stock card line
	PrefixResolution Prefix = "res" // numbering resolution
	PrefixValidation Prefix = "fv"  // fiscal validation attempt
	PrefixReceipt    Prefix = "rcpt"
	PrefixTransfer   Prefix = "trf"
)

// New generates a new globally unique id with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) string {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return tid.String()
}

// Parse validates s and returns its prefix.
func Parse(s string) (Prefix, error) {
	if s == "" {
		return "", fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("id: parse %q: %w", s, err)
	}
	return Prefix(tid.Prefix()), nil
}

// HasPrefix reports whether s is a valid id of the expected type.
func HasPrefix(s string, expected Prefix) bool {
	p, err := Parse(s)
	return err == nil && p == expected
}

func NewPostingID() string    { return New(PrefixPosting) }
func NewMovementID() string   { return New(PrefixMovement) }
func NewResolutionID() string { return New(PrefixResolution) }
func NewValidationID() string { return New(PrefixValidation) }
func NewReceiptID() string    { return New(PrefixReceipt) }
func NewTransferID() string   { return New(PrefixTransfer) }
