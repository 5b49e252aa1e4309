package stock_test

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesledger/internal/core/apperror"
	"salesledger/internal/core/types"
	"salesledger/internal/domain/registers/stock"
	"salesledger/internal/infrastructure/storage/memory"
)

func qty(n int64) types.Quantity { return types.NewQuantity(n) }

func money(s string) types.Money { return types.MustMoney(s) }

func newLedger(t *testing.T, negative ...string) *stock.Service {
	t.Helper()
	return stock.NewService(memory.NewStockRepo(), stock.NewNegativeStockLocations(negative))
}

func receive(t *testing.T, svc *stock.Service, item, loc string, n int64, cost string) {
	t.Helper()
	_, err := svc.Receive(context.Background(), item, loc, qty(n), money(cost), "test", "seed")
	require.NoError(t, err)
}

func TestAverageMovingCost(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()

	receive(t, svc, "sku-1", "wh-1", 10, "100")
	receive(t, svc, "sku-1", "wh-1", 10, "200")

	rec, err := svc.GetRecord(ctx, "sku-1", "wh-1")
	require.NoError(t, err)
	assert.Equal(t, qty(20), rec.Quantity)
	assert.True(t, rec.AvgCost.Equal(money("150")), "avg cost %s", rec.AvgCost)

	mv, err := svc.Apply(ctx, stock.ApplyInput{
		ItemID: "sku-1", LocationID: "wh-1", Quantity: qty(5), Direction: stock.Expense,
	})
	require.NoError(t, err)
	assert.True(t, mv.UnitCost.Equal(money("150")))
	assert.Equal(t, qty(15), mv.BalanceQty)

	cost, err := svc.GetCost(ctx, "sku-1", "wh-1")
	require.NoError(t, err)
	assert.True(t, cost.Equal(money("150")))
}

func TestAverageCostRepeatingFraction(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()

	receive(t, svc, "sku-1", "wh-1", 2, "10")
	receive(t, svc, "sku-1", "wh-1", 1, "11")

	cost, err := svc.GetCost(ctx, "sku-1", "wh-1")
	require.NoError(t, err)
	assert.Equal(t, "10.333333", cost.StringFixed(6))
}

func TestValidateCollectsAllShortages(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()

	receive(t, svc, "sku-1", "wh-1", 3, "10")
	receive(t, svc, "sku-2", "wh-1", 10, "10")
	receive(t, svc, "sku-3", "wh-1", 1, "10")

	shortages, err := svc.Validate(ctx, "wh-1", []stock.Requirement{
		{ItemID: "sku-1", Quantity: qty(5), Controlled: true},
		{ItemID: "sku-2", Quantity: qty(6), Controlled: true},
		{ItemID: "sku-2", Quantity: qty(6), Controlled: true},
		{ItemID: "sku-3", Quantity: qty(1), Controlled: true},
		{ItemID: "service-fee", Quantity: qty(99), Controlled: false},
		{ItemID: "sku-unknown", Quantity: qty(1), Controlled: true},
	})
	require.NoError(t, err)

	require.Len(t, shortages, 3)
	assert.Equal(t, stock.Shortage{ItemID: "sku-1", LocationID: "wh-1", Requested: qty(5), Available: qty(3)}, shortages[0])
	assert.Equal(t, stock.Shortage{ItemID: "sku-2", LocationID: "wh-1", Requested: qty(12), Available: qty(10)}, shortages[1])
	assert.Equal(t, stock.Shortage{ItemID: "sku-unknown", LocationID: "wh-1", Requested: qty(1), Available: 0}, shortages[2])
	assert.Equal(t, qty(2), shortages[0].Missing())

	err = stock.ShortageError(shortages)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))
	assert.Equal(t, shortages, stock.ShortagesOf(err))
}

func TestNegativeStockLocation(t *testing.T) {
	svc := newLedger(t, "wh-neg")
	ctx := context.Background()

	shortages, err := svc.Validate(ctx, "wh-neg", []stock.Requirement{{ItemID: "sku-1", Quantity: qty(5), Controlled: true}})
	require.NoError(t, err)
	assert.Empty(t, shortages)

	mv, err := svc.Apply(ctx, stock.ApplyInput{ItemID: "sku-1", LocationID: "wh-neg", Quantity: qty(5), Direction: stock.Expense})
	require.NoError(t, err)
	assert.False(t, mv.Clamped)
	assert.Equal(t, qty(-5), mv.BalanceQty)

	// A receipt onto negative stock restarts the average at the receipt cost.
	receive(t, svc, "sku-1", "wh-neg", 10, "40")
	rec, err := svc.GetRecord(ctx, "sku-1", "wh-neg")
	require.NoError(t, err)
	assert.Equal(t, qty(5), rec.Quantity)
	assert.True(t, rec.AvgCost.Equal(money("40")))
}

func TestDecreaseClampsAtZero(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()
	receive(t, svc, "sku-1", "wh-1", 2, "10")

	mv, err := svc.Apply(ctx, stock.ApplyInput{ItemID: "sku-1", LocationID: "wh-1", Quantity: qty(5), Direction: stock.Expense})
	require.NoError(t, err)
	assert.True(t, mv.Clamped)

	q, err := svc.GetQuantity(ctx, "sku-1", "wh-1")
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(0), q)
}

func TestApplyRejectsNonPositiveQuantity(t *testing.T) {
	svc := newLedger(t)
	_, err := svc.Apply(context.Background(), stock.ApplyInput{ItemID: "sku-1", LocationID: "wh-1", Quantity: 0, Direction: stock.Receipt})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestTransferUsesSourceCost(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()
	receive(t, svc, "sku-1", "wh-src", 10, "50")
	receive(t, svc, "sku-1", "wh-dst", 10, "100")

	out, in, err := svc.Transfer(ctx, stock.TransferInput{
		ItemID: "sku-1", FromLocationID: "wh-src", ToLocationID: "wh-dst", Quantity: qty(10), RecorderID: "tr-1",
	})
	require.NoError(t, err)
	assert.Equal(t, stock.Expense, out.Direction)
	assert.True(t, in.UnitCost.Equal(money("50")))

	src, err := svc.GetQuantity(ctx, "sku-1", "wh-src")
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(0), src)

	dst, err := svc.GetRecord(ctx, "sku-1", "wh-dst")
	require.NoError(t, err)
	assert.Equal(t, qty(20), dst.Quantity)
	assert.True(t, dst.AvgCost.Equal(money("75")))
}

func TestTransferShortage(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()
	receive(t, svc, "sku-1", "wh-src", 1, "50")

	_, _, err := svc.Transfer(ctx, stock.TransferInput{ItemID: "sku-1", FromLocationID: "wh-src", ToLocationID: "wh-dst", Quantity: qty(2)})
	require.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	q, err := svc.GetQuantity(ctx, "sku-1", "wh-src")
	require.NoError(t, err)
	assert.Equal(t, qty(1), q)
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()
	receive(t, svc, "sku-1", "wh-1", 10, "10")

	var ok, short int32
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.CheckAndReserve(ctx, "wh-1", []stock.Requirement{{ItemID: "sku-1", Quantity: qty(1), Controlled: true}})
			if err != nil {
				if apperror.HasCode(err, apperror.CodeInsufficientStock) {
					atomic.AddInt32(&short, 1)
				}
				return
			}
			defer res.Release()
			if _, err := res.Apply(ctx, stock.ApplyInput{ItemID: "sku-1", Quantity: qty(1), Direction: stock.Expense}); err == nil {
				atomic.AddInt32(&ok, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), ok)
	assert.Equal(t, int32(15), short)

	q, err := svc.GetQuantity(ctx, "sku-1", "wh-1")
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(0), q)

	movements, err := svc.ListMovements(ctx, stock.MovementFilter{ItemID: "sku-1", LocationID: "wh-1"})
	require.NoError(t, err)
	for _, m := range movements {
		assert.False(t, m.Clamped)
		assert.False(t, m.BalanceQty.IsNegative())
	}
}

func TestReservationRejectsUnreservedItem(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()
	receive(t, svc, "sku-1", "wh-1", 1, "10")

	res, err := svc.CheckAndReserve(ctx, "wh-1", []stock.Requirement{{ItemID: "sku-1", Quantity: qty(1), Controlled: true}})
	require.NoError(t, err)
	defer res.Release()

	_, err = res.Apply(ctx, stock.ApplyInput{ItemID: "sku-2", Quantity: qty(1), Direction: stock.Expense})
	assert.Error(t, err)
}

func TestValidateSaturatesOversizedTotals(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()
	receive(t, svc, "sku-1", "wh-1", 3, "10")

	half := types.Quantity(math.MaxInt64/2 + 1)
	shortages, err := svc.Validate(ctx, "wh-1", []stock.Requirement{
		{ItemID: "sku-1", Quantity: half, Controlled: true},
		{ItemID: "sku-1", Quantity: half, Controlled: true},
	})
	require.NoError(t, err)
	require.Len(t, shortages, 1)
	assert.Equal(t, types.Quantity(math.MaxInt64), shortages[0].Requested)
	assert.Equal(t, qty(3), shortages[0].Available)
}

func TestReserveHoldsKeysUntilRelease(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()
	receive(t, svc, "sku-1", "wh-1", 1, "10")

	held := svc.Reserve("wh-1", []string{"sku-1", "sku-2", "sku-1"})
	_, err := held.Apply(ctx, stock.ApplyInput{ItemID: "sku-2", Quantity: qty(4), UnitCost: money("5"), Direction: stock.Receipt})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		res, err := svc.CheckAndReserve(ctx, "wh-1", []stock.Requirement{{ItemID: "sku-2", Quantity: qty(4), Controlled: true}})
		if err == nil {
			res.Release()
		}
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("reservation acquired a key that is still held")
	case <-time.After(50 * time.Millisecond):
	}

	held.Release()
	held.Release()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reservation still blocked after release")
	}
}
