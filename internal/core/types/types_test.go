package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want Quantity
	}{
		{"5", NewQuantity(5)},
		{"2.5", Quantity(25_000)},
		{"-0.0001", Quantity(-1)},
		{"1.23456", Quantity(12_345)},
		{".5", Quantity(5_000)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuantity(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseQuantity("abc")
	assert.Error(t, err)
}

func TestQuantityJSON(t *testing.T) {
	var payload struct {
		Qty Quantity `json:"qty"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"qty":"3.25"}`), &payload))
	assert.Equal(t, Quantity(32_500), payload.Qty)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"qty":3.25}`, string(out))
}

func TestQuantityDecimal(t *testing.T) {
	q := NewQuantity(5)
	assert.True(t, q.Decimal().Equal(decimal.NewFromInt(5)))
	got, err := NewQuantityFromDecimal(decimal.NewFromInt(5))
	require.NoError(t, err)
	assert.Equal(t, q, got)
}

func TestQuantityOutOfRange(t *testing.T) {
	tests := []string{
		"1844674407370955.1617",
		"922337203685477.5808",
		"1000000000000.0001",
		"-1000000000001",
		"1e20",
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			_, err := ParseQuantity(in)
			assert.Error(t, err)
		})
	}

	q, err := ParseQuantity("1000000000000")
	require.NoError(t, err)
	assert.Equal(t, MaxQuantity, q)

	var payload struct {
		Qty Quantity `json:"qty"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"qty":500000000000000000}`), &payload))
}

func TestSumQuantities(t *testing.T) {
	tests := []struct {
		name string
		in   []Quantity
		want Quantity
	}{
		{"empty", nil, 0},
		{"plain", []Quantity{NewQuantity(2), NewQuantity(3)}, NewQuantity(5)},
		{"saturates high", []Quantity{Quantity(math.MaxInt64 - 1), NewQuantity(1)}, Quantity(math.MaxInt64)},
		{"saturates low", []Quantity{Quantity(math.MinInt64 + 1), NewQuantity(-1)}, Quantity(math.MinInt64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SumQuantities(tt.in...))
		})
	}
}

func TestPercentHelpers(t *testing.T) {
	base := NewMoneyFromInt(2_500_000)
	tax := ApplyPercent(base, decimal.NewFromInt(19))
	assert.True(t, tax.Equal(NewMoneyFromInt(475_000)))

	assert.True(t, ValidPercent(decimal.Zero))
	assert.True(t, ValidPercent(decimal.NewFromInt(100)))
	assert.False(t, ValidPercent(decimal.NewFromInt(101)))
	assert.False(t, ValidPercent(decimal.NewFromInt(-1)))

	assert.Equal(t, "10.13", RoundMoney(MustMoney("10.125")).StringFixed(2))
}
