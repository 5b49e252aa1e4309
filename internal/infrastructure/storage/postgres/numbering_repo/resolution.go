// Package numbering_repo provides the PostgreSQL numbering resolution store.
package numbering_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"salesledger/internal/core/apperror"
	"salesledger/internal/domain/numbering"
	"salesledger/internal/infrastructure/storage/postgres"
)

const resolutionsTable = "numbering_resolutions"

var resolutionColumns = postgres.ExtractDBColumns[numbering.Resolution]()

// ResolutionRepo implements numbering.Repository.
type ResolutionRepo struct {
	txm *postgres.TxManager
}

var _ numbering.Repository = (*ResolutionRepo)(nil)

func NewResolutionRepo(txm *postgres.TxManager) *ResolutionRepo {
	return &ResolutionRepo{txm: txm}
}

func (r *ResolutionRepo) Create(ctx context.Context, res *numbering.Resolution) error {
	sql, args, err := postgres.Builder().
		Insert(resolutionsTable).
		SetMap(postgres.StructToMap(res)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError("insert", "resolution", err)
	}
	return nil
}

func (r *ResolutionRepo) GetByID(ctx context.Context, id string) (*numbering.Resolution, error) {
	list, err := r.selectWhere(ctx, squirrel.Eq{"id": id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperror.NewNotFound("resolution", id)
	}
	return list[0], nil
}

func (r *ResolutionRepo) ListByBranch(ctx context.Context, branchID string) ([]*numbering.Resolution, error) {
	return r.selectWhere(ctx, squirrel.Eq{"branch_id": branchID})
}

func (r *ResolutionRepo) FindActive(ctx context.Context, branchID string, kind numbering.Kind) ([]*numbering.Resolution, error) {
	return r.selectWhere(ctx, squirrel.Eq{"branch_id": branchID, "kind": kind, "active": true})
}

func (r *ResolutionRepo) SetActive(ctx context.Context, id string, active bool) error {
	sql, args, err := postgres.Builder().
		Update(resolutionsTable).
		Set("active", active).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError("update", "resolution", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("resolution", id)
	}
	return nil
}

// Increment advances current_number in one statement; the row lock taken by
// UPDATE serializes concurrent allocations across processes.
func (r *ResolutionRepo) Increment(ctx context.Context, id string) (int64, error) {
	var seq int64
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, `
		UPDATE numbering_resolutions
		SET current_number = current_number + 1
		WHERE id = $1 AND current_number <= range_to
		RETURNING current_number - 1
	`, id).Scan(&seq)
	if err == nil {
		return seq, nil
	}
	if !postgres.IsNoRows(err) {
		return 0, fmt.Errorf("increment resolution %s: %w", id, err)
	}

	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return 0, getErr
	}
	return 0, apperror.NewResolutionBlocked(apperror.CodeResolutionExhausted, id, "resolution range is exhausted")
}

func (r *ResolutionRepo) selectWhere(ctx context.Context, where squirrel.Sqlizer) ([]*numbering.Resolution, error) {
	sql, args, err := postgres.Builder().
		Select(resolutionColumns...).
		From(resolutionsTable).
		Where(where).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*numbering.Resolution
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select resolutions: %w", err)
	}
	return out, nil
}
