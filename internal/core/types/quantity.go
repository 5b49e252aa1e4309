package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Quantity counts stock units in ten-thousandths, so fractional units
// (kilograms, metres) add up without float drift. Columns hold the scaled
// BIGINT; JSON carries a plain number.
type Quantity int64

const (
	quantityDigits       = 4
	quantityScale  int64 = 10_000
)

// MaxQuantity bounds every single quantity (one trillion units), leaving the
// scaled int64 room to sum many lines.
const MaxQuantity = Quantity(1_000_000_000_000 * quantityScale)

var maxQuantityDecimal = decimal.New(int64(MaxQuantity), -quantityDigits)

// NewQuantity creates a Quantity from whole units.
func NewQuantity(units int64) Quantity { return Quantity(units * quantityScale) }

// NewQuantityFromDecimal keeps four fractional digits of d, truncating the
// rest. Values beyond ±MaxQuantity are rejected.
func NewQuantityFromDecimal(d decimal.Decimal) (Quantity, error) {
	if d.Abs().GreaterThan(maxQuantityDecimal) {
		return 0, fmt.Errorf("quantity %s exceeds the maximum of %s", d.String(), MaxQuantity.String())
	}
	return Quantity(d.Shift(quantityDigits).Truncate(0).IntPart()), nil
}

// SumQuantities adds qs, saturating at the int64 bounds instead of wrapping.
func SumQuantities(qs ...Quantity) Quantity {
	var total Quantity
	for _, q := range qs {
		switch {
		case q > 0 && total > math.MaxInt64-q:
			total = math.MaxInt64
		case q < 0 && total < math.MinInt64-q:
			total = math.MinInt64
		default:
			total += q
		}
	}
	return total
}

// Decimal returns the exact value for money arithmetic.
func (q Quantity) Decimal() decimal.Decimal { return decimal.New(int64(q), -quantityDigits) }

func (q Quantity) IsZero() bool     { return q == 0 }
func (q Quantity) IsPositive() bool { return q > 0 }
func (q Quantity) IsNegative() bool { return q < 0 }

// MinQuantity returns the smaller of a and b.
func MinQuantity(a, b Quantity) Quantity {
	if a < b {
		return a
	}
	return b
}

func (q Quantity) String() string { return q.Decimal().StringFixed(quantityDigits) }

func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalJSON accepts 3, 3.25 and "3.25".
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = 0
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	parsed, err := ParseQuantity(raw)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// ParseQuantity parses "12", "12.5", ".5" or "-0.0001".
func ParseQuantity(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}
	switch {
	case strings.HasPrefix(s, "."):
		s = "0" + s
	case strings.HasPrefix(s, "-."):
		s = "-0" + s[1:]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	return NewQuantityFromDecimal(d)
}
