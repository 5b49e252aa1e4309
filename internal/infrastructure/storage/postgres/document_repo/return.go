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

const returnsTable = "return_documents"

type returnRow struct {
	ID               string      `db:"id"`
	OriginalID       string      `db:"original_id"`
	ResolutionID     string      `db:"resolution_id"`
	BranchID         string      `db:"branch_id"`
	SubLocationID    string      `db:"sub_location_id"`
	WarehouseID      string      `db:"warehouse_id"`
	ClientID         string      `db:"client_id"`
	Reason           string      `db:"reason"`
	IssueDate        time.Time   `db:"issue_date"`
	Lines            []byte      `db:"lines"`
	Subtotal         types.Money `db:"subtotal"`
	TotalDiscount    types.Money `db:"total_discount"`
	TotalTax         types.Money `db:"total_tax"`
	Total            types.Money `db:"total"`
	CostTotal        types.Money `db:"cost_total"`
	CreditedAdvance  bool        `db:"credited_advance"`
	ValidationStatus string      `db:"validation_status"`
	ValidationNote   string      `db:"validation_note"`
	CreatedAt        time.Time   `db:"created_at"`
}

var returnColumns = postgres.ExtractDBColumns[returnRow]()

func (r *returnRow) toDomain() (*documents.Return, error) {
	ret := &documents.Return{
		ID:           r.ID,
		OriginalID:   r.OriginalID,
		ResolutionID: r.ResolutionID,
		Location:     numbering.Location{BranchID: r.BranchID, SubLocationID: r.SubLocationID},
		WarehouseID:  r.WarehouseID,
		ClientID:     r.ClientID,
		Reason:       r.Reason,
		IssueDate:    r.IssueDate,
		Totals: documents.Totals{
			Subtotal:      r.Subtotal,
			TotalDiscount: r.TotalDiscount,
			TotalTax:      r.TotalTax,
			Total:         r.Total,
			CostTotal:     r.CostTotal,
		},
		CreditedAdvance:  r.CreditedAdvance,
		ValidationStatus: documents.ValidationStatus(r.ValidationStatus),
		ValidationNote:   r.ValidationNote,
		CreatedAt:        r.CreatedAt,
	}
	if err := json.Unmarshal(r.Lines, &ret.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal lines of %s: %w", r.ID, err)
	}
	return ret, nil
}

// ReturnRepo implements documents.ReturnRepository.
type ReturnRepo struct {
	txm *postgres.TxManager
}

var _ documents.ReturnRepository = (*ReturnRepo)(nil)

func NewReturnRepo(txm *postgres.TxManager) *ReturnRepo {
	return &ReturnRepo{txm: txm}
}

func (r *ReturnRepo) Create(ctx context.Context, ret *documents.Return) error {
	lines, err := json.Marshal(ret.Lines)
	if err != nil {
		return fmt.Errorf("marshal lines: %w", err)
	}
	row := &returnRow{
		ID:               ret.ID,
		OriginalID:       ret.OriginalID,
		ResolutionID:     ret.ResolutionID,
		BranchID:         ret.Location.BranchID,
		SubLocationID:    ret.Location.SubLocationID,
		WarehouseID:      ret.WarehouseID,
		ClientID:         ret.ClientID,
		Reason:           ret.Reason,
		IssueDate:        ret.IssueDate,
		Lines:            lines,
		Subtotal:         ret.Totals.Subtotal,
		TotalDiscount:    ret.Totals.TotalDiscount,
		TotalTax:         ret.Totals.TotalTax,
		Total:            ret.Totals.Total,
		CostTotal:        ret.Totals.CostTotal,
		CreditedAdvance:  ret.CreditedAdvance,
		ValidationStatus: string(ret.ValidationStatus),
		ValidationNote:   ret.ValidationNote,
		CreatedAt:        ret.CreatedAt,
	}
	sql, args, err := postgres.Builder().
		Insert(returnsTable).
		SetMap(postgres.StructToMap(row)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError("insert", "return", err)
	}
	return nil
}

func (r *ReturnRepo) Get(ctx context.Context, id string) (*documents.Return, error) {
	list, err := r.selectReturns(ctx, squirrel.Eq{"id": id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperror.NewNotFound("return", id)
	}
	return list[0], nil
}

func (r *ReturnRepo) ListByOriginal(ctx context.Context, saleID string) ([]*documents.Return, error) {
	return r.selectReturns(ctx, squirrel.Eq{"original_id": saleID})
}

// SetValidation leaves updated_at alone; returns carry no such column.
func (r *ReturnRepo) SetValidation(ctx context.Context, id string, status documents.ValidationStatus, note string, _ time.Time) (bool, error) {
	return setValidation(ctx, r.txm, returnsTable, "return", id, status, note, nil)
}

func (r *ReturnRepo) selectReturns(ctx context.Context, where squirrel.Sqlizer) ([]*documents.Return, error) {
	sql, args, err := postgres.Builder().
		Select(returnColumns...).
		From(returnsTable).
		Where(where).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []*returnRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select returns: %w", err)
	}
	out := make([]*documents.Return, 0, len(rows))
	for _, row := range rows {
		ret, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, ret)
	}
	return out, nil
}
