// Package document_repo provides the PostgreSQL stores of sale and return
// documents. Lines and returned quantities are kept as JSONB.
package document_repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"salesledger/internal/core/apperror"
	"salesledger/internal/core/types"
	"salesledger/internal/domain/documents"
	"salesledger/internal/domain/numbering"
	"salesledger/internal/infrastructure/storage/postgres"
)

const salesTable = "sale_documents"

type saleRow struct {
	ID               string      `db:"id"`
	ResolutionID     string      `db:"resolution_id"`
	BranchID         string      `db:"branch_id"`
	SubLocationID    string      `db:"sub_location_id"`
	WarehouseID      string      `db:"warehouse_id"`
	ClientID         string      `db:"client_id"`
	PaymentMethodID  string      `db:"payment_method_id"`
	IssueDate        time.Time   `db:"issue_date"`
	Lines            []byte      `db:"lines"`
	Subtotal         types.Money `db:"subtotal"`
	TotalDiscount    types.Money `db:"total_discount"`
	TotalTax         types.Money `db:"total_tax"`
	Total            types.Money `db:"total"`
	CostTotal        types.Money `db:"cost_total"`
	AdvanceApplied   types.Money `db:"advance_applied"`
	Paid             bool        `db:"paid"`
	Status           string      `db:"status"`
	ValidationStatus string      `db:"validation_status"`
	ValidationNote   string      `db:"validation_note"`
	Returned         []byte      `db:"returned"`
	Note             string      `db:"note"`
	CreatedAt        time.Time   `db:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at"`
}

var saleColumns = postgres.ExtractDBColumns[saleRow]()

func saleToRow(s *documents.Sale) (*saleRow, error) {
	lines, err := json.Marshal(s.Lines)
	if err != nil {
		return nil, fmt.Errorf("marshal lines: %w", err)
	}
	returned, err := marshalReturned(s.Returned)
	if err != nil {
		return nil, err
	}
	return &saleRow{
		ID:               s.ID,
		ResolutionID:     s.ResolutionID,
		BranchID:         s.Location.BranchID,
		SubLocationID:    s.Location.SubLocationID,
		WarehouseID:      s.WarehouseID,
		ClientID:         s.ClientID,
		PaymentMethodID:  s.PaymentMethodID,
		IssueDate:        s.IssueDate,
		Lines:            lines,
		Subtotal:         s.Totals.Subtotal,
		TotalDiscount:    s.Totals.TotalDiscount,
		TotalTax:         s.Totals.TotalTax,
		Total:            s.Totals.Total,
		CostTotal:        s.Totals.CostTotal,
		AdvanceApplied:   s.AdvanceApplied,
		Paid:             s.Paid,
		Status:           string(s.Status),
		ValidationStatus: string(s.ValidationStatus),
		ValidationNote:   s.ValidationNote,
		Returned:         returned,
		Note:             s.Note,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}, nil
}

func (r *saleRow) toDomain() (*documents.Sale, error) {
	s := &documents.Sale{
		ID:           r.ID,
		ResolutionID: r.ResolutionID,
		Location:     numbering.Location{BranchID: r.BranchID, SubLocationID: r.SubLocationID},
		WarehouseID:  r.WarehouseID,
		ClientID:     r.ClientID,
		IssueDate:    r.IssueDate,
		Totals: documents.Totals{
			Subtotal:      r.Subtotal,
			TotalDiscount: r.TotalDiscount,
			TotalTax:      r.TotalTax,
			Total:         r.Total,
			CostTotal:     r.CostTotal,
		},
		PaymentMethodID:  r.PaymentMethodID,
		AdvanceApplied:   r.AdvanceApplied,
		Paid:             r.Paid,
		Status:           documents.Status(r.Status),
		ValidationStatus: documents.ValidationStatus(r.ValidationStatus),
		ValidationNote:   r.ValidationNote,
		Note:             r.Note,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		Returned:         map[string]types.Quantity{},
	}
	if err := json.Unmarshal(r.Lines, &s.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal lines of %s: %w", r.ID, err)
	}
	if len(r.Returned) > 0 {
		if err := json.Unmarshal(r.Returned, &s.Returned); err != nil {
			return nil, fmt.Errorf("unmarshal returned of %s: %w", r.ID, err)
		}
	}
	return s, nil
}

func marshalReturned(m map[string]types.Quantity) ([]byte, error) {
	if m == nil {
		m = map[string]types.Quantity{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal returned: %w", err)
	}
	return b, nil
}

// SaleRepo implements documents.SaleRepository.
type SaleRepo struct {
	txm *postgres.TxManager
}

var _ documents.SaleRepository = (*SaleRepo)(nil)

func NewSaleRepo(txm *postgres.TxManager) *SaleRepo {
	return &SaleRepo{txm: txm}
}

func (r *SaleRepo) Create(ctx context.Context, sale *documents.Sale) error {
	row, err := saleToRow(sale)
	if err != nil {
		return err
	}
	sql, args, err := postgres.Builder().
		Insert(salesTable).
		SetMap(postgres.StructToMap(row)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError("insert", "sale", err)
	}
	return nil
}

func (r *SaleRepo) Get(ctx context.Context, id string) (*documents.Sale, error) {
	list, err := r.selectSales(ctx, postgres.Builder().
		Select(saleColumns...).
		From(salesTable).
		Where(squirrel.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperror.NewNotFound("sale", id)
	}
	return list[0], nil
}

func (r *SaleRepo) UpdateReturns(ctx context.Context, sale *documents.Sale) error {
	returned, err := marshalReturned(sale.Returned)
	if err != nil {
		return err
	}
	sql, args, err := postgres.Builder().
		Update(salesTable).
		Set("status", string(sale.Status)).
		Set("returned", returned).
		Set("updated_at", sale.UpdatedAt).
		Where(squirrel.Eq{"id": sale.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError("update", "sale", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("sale", sale.ID)
	}
	return nil
}

func (r *SaleRepo) SetValidation(ctx context.Context, id string, status documents.ValidationStatus, note string, at time.Time) (bool, error) {
	return setValidation(ctx, r.txm, salesTable, "sale", id, status, note, &at)
}

func (r *SaleRepo) List(ctx context.Context, f documents.SaleFilter) ([]*documents.Sale, error) {
	q := postgres.Builder().
		Select(saleColumns...).
		From(salesTable).
		OrderBy("created_at", "id")
	if f.BranchID != "" {
		q = q.Where(squirrel.Eq{"branch_id": f.BranchID})
	}
	if f.ClientID != "" {
		q = q.Where(squirrel.Eq{"client_id": f.ClientID})
	}
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{"issue_date": *f.From})
	}
	if f.To != nil {
		q = q.Where(squirrel.LtOrEq{"issue_date": *f.To})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	return r.selectSales(ctx, q)
}

func (r *SaleRepo) selectSales(ctx context.Context, q squirrel.SelectBuilder) ([]*documents.Sale, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []*saleRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}
	out := make([]*documents.Sale, 0, len(rows))
	for _, row := range rows {
		s, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// setValidation moves a pending document to a final validation status.
func setValidation(ctx context.Context, txm *postgres.TxManager, table, entity, id string, status documents.ValidationStatus, note string, at *time.Time) (bool, error) {
	q := postgres.Builder().
		Update(table).
		Set("validation_status", string(status)).
		Set("validation_note", note).
		Where(squirrel.Eq{"id": id, "validation_status": string(documents.ValidationPending)})
	if at != nil {
		q = q.Set("updated_at", *at)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}
	tag, err := txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, postgres.MapError("update", entity, err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists int
	err = txm.GetQuerier(ctx).QueryRow(ctx, "SELECT 1 FROM "+table+" WHERE id = $1", id).Scan(&exists)
	if postgres.IsNoRows(err) {
		return false, apperror.NewNotFound(entity, id)
	}
	if err != nil {
		return false, fmt.Errorf("check %s: %w", entity, err)
	}
	return false, nil
}
