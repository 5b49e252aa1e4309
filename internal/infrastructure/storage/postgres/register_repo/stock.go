// Package register_repo provides the PostgreSQL stock ledger store.
package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"salesledger/internal/core/types"
	"salesledger/internal/domain/registers/stock"
	"salesledger/internal/infrastructure/storage/postgres"
)

const (
	stockRecordsTable   = "stock_records"
	stockMovementsTable = "stock_movements"
)

var movementColumns = postgres.ExtractDBColumns[stock.Movement]()

// recordRow and movementRow carry quantities in their scaled integer form.
type recordRow struct {
	ItemID     string      `db:"item_id"`
	LocationID string      `db:"location_id"`
	Quantity   int64       `db:"quantity"`
	AvgCost    types.Money `db:"avg_cost"`
	UpdatedAt  time.Time   `db:"updated_at"`
}

func (r recordRow) toDomain() *stock.Record {
	return &stock.Record{
		ItemID:     r.ItemID,
		LocationID: r.LocationID,
		Quantity:   types.Quantity(r.Quantity),
		AvgCost:    r.AvgCost,
		UpdatedAt:  r.UpdatedAt,
	}
}

type movementRow struct {
	ID           string      `db:"id"`
	ItemID       string      `db:"item_id"`
	LocationID   string      `db:"location_id"`
	Direction    string      `db:"direction"`
	Quantity     int64       `db:"quantity"`
	UnitCost     types.Money `db:"unit_cost"`
	BalanceQty   int64       `db:"balance_qty"`
	BalanceCost  types.Money `db:"balance_cost"`
	Clamped      bool        `db:"clamped"`
	RecorderType string      `db:"recorder_type"`
	RecorderID   string      `db:"recorder_id"`
	Period       time.Time   `db:"period"`
}

func (m movementRow) toDomain() *stock.Movement {
	return &stock.Movement{
		ID:           m.ID,
		ItemID:       m.ItemID,
		LocationID:   m.LocationID,
		Direction:    stock.Direction(m.Direction),
		Quantity:     types.Quantity(m.Quantity),
		UnitCost:     m.UnitCost,
		BalanceQty:   types.Quantity(m.BalanceQty),
		BalanceCost:  m.BalanceCost,
		Clamped:      m.Clamped,
		RecorderType: m.RecorderType,
		RecorderID:   m.RecorderID,
		Period:       m.Period,
	}
}

// StockRepo implements stock.Repository.
type StockRepo struct {
	txm *postgres.TxManager
}

var _ stock.Repository = (*StockRepo)(nil)

func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{txm: txm}
}

// Get reads one record. Inside a transaction the row is locked FOR UPDATE.
func (r *StockRepo) Get(ctx context.Context, itemID, locationID string) (*stock.Record, error) {
	q := postgres.Builder().
		Select("item_id", "location_id", "quantity", "avg_cost", "updated_at").
		From(stockRecordsTable).
		Where(squirrel.Eq{"item_id": itemID, "location_id": locationID})
	if r.txm.InTx(ctx) {
		q = q.Suffix("FOR UPDATE")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row recordRow
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock record: %w", err)
	}
	return row.toDomain(), nil
}

func (r *StockRepo) Save(ctx context.Context, rec *stock.Record) error {
	_, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO stock_records (item_id, location_id, quantity, avg_cost, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (item_id, location_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			avg_cost = EXCLUDED.avg_cost,
			updated_at = EXCLUDED.updated_at
	`, rec.ItemID, rec.LocationID, int64(rec.Quantity), rec.AvgCost, rec.UpdatedAt)
	if err != nil {
		return postgres.MapError("upsert", "stock record", err)
	}
	return nil
}

func (r *StockRepo) AppendMovement(ctx context.Context, m *stock.Movement) error {
	sql, args, err := postgres.Builder().
		Insert(stockMovementsTable).
		Columns(movementColumns...).
		Values(
			m.ID, m.ItemID, m.LocationID, string(m.Direction),
			int64(m.Quantity), m.UnitCost, int64(m.BalanceQty), m.BalanceCost,
			m.Clamped, m.RecorderType, m.RecorderID, m.Period,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError("insert", "stock movement", err)
	}
	return nil
}

func (r *StockRepo) ListMovements(ctx context.Context, f stock.MovementFilter) ([]*stock.Movement, error) {
	q := postgres.Builder().
		Select(movementColumns...).
		From(stockMovementsTable).
		OrderBy("period", "id")
	if f.ItemID != "" {
		q = q.Where(squirrel.Eq{"item_id": f.ItemID})
	}
	if f.LocationID != "" {
		q = q.Where(squirrel.Eq{"location_id": f.LocationID})
	}
	if f.RecorderID != "" {
		q = q.Where(squirrel.Eq{"recorder_id": f.RecorderID})
	}
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{"period": *f.From})
	}
	if f.To != nil {
		q = q.Where(squirrel.LtOrEq{"period": *f.To})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []movementRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	out := make([]*stock.Movement, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *StockRepo) ListByLocation(ctx context.Context, locationID string) ([]*stock.Record, error) {
	sql, args, err := postgres.Builder().
		Select("item_id", "location_id", "quantity", "avg_cost", "updated_at").
		From(stockRecordsTable).
		Where(squirrel.Eq{"location_id": locationID}).
		OrderBy("item_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []recordRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select stock records: %w", err)
	}
	out := make([]*stock.Record, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}
