// Package types provides the numeric value types shared by the engine.
package types

import (
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits of the smallest currency unit.
const MoneyScale int32 = 2

// CostScale is the precision kept for weighted-average unit costs.
const CostScale int32 = 6

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// Percent is a rate expressed in hundredths (19 means 19%).
type Percent = decimal.Decimal

var hundred = decimal.NewFromInt(100)

// NewMoneyFromString creates a Money value from a string.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// NewMoneyFromInt creates a Money value from whole currency units.
func NewMoneyFromInt(v int64) Money {
	return decimal.NewFromInt(v)
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// RoundMoney rounds half away from zero to the smallest currency unit.
func RoundMoney(m Money) Money {
	return m.Round(MoneyScale)
}

// RoundCost rounds a unit cost to CostScale digits.
func RoundCost(m Money) Money {
	return m.Round(CostScale)
}

// ApplyPercent returns base*pct/100 without rounding.
func ApplyPercent(base Money, pct Percent) Money {
	return base.Mul(pct).Div(hundred)
}

// ValidPercent reports whether pct lies within [0,100].
func ValidPercent(pct Percent) bool {
	return !pct.IsNegative() && pct.LessThanOrEqual(hundred)
}
