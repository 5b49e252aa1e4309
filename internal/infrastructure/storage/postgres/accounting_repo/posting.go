// Package accounting_repo stores postings and derives account balances.
package accounting_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"salesledger/internal/core/types"
	"salesledger/internal/domain/accounting"
	"salesledger/internal/infrastructure/storage/postgres"
)

const (
	postingsTable = "postings"
	linesTable    = "posting_lines"
)

var (
	postingColumns = postgres.ExtractDBColumns[accounting.Posting]()
	lineColumns    = []string{"posting_id", "line_no", "account_code", "debit", "credit"}
)

type lineRow struct {
	PostingID string      `db:"posting_id"`
	LineNo    int         `db:"line_no"`
	Account   string      `db:"account_code"`
	Debit     types.Money `db:"debit"`
	Credit    types.Money `db:"credit"`
}

// PostingRepo implements accounting.Repository.
type PostingRepo struct {
	txm *postgres.TxManager
}

var _ accounting.Repository = (*PostingRepo)(nil)

func NewPostingRepo(txm *postgres.TxManager) *PostingRepo {
	return &PostingRepo{txm: txm}
}

// Save writes the posting header and its lines. Callers run it inside the
// document transaction so a failed line insert leaves no header behind.
func (r *PostingRepo) Save(ctx context.Context, p *accounting.Posting) error {
	sql, args, err := postgres.Builder().
		Insert(postingsTable).
		SetMap(postgres.StructToMap(p)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError("insert", "posting", err)
	}

	rows := make([][]any, 0, len(p.Lines))
	for i, l := range p.Lines {
		rows = append(rows, []any{p.ID, i + 1, l.Account, l.Debit, l.Credit})
	}
	return r.txm.InsertRows(ctx, linesTable, lineColumns, rows)
}

func (r *PostingRepo) ListByDocument(ctx context.Context, documentID string) ([]*accounting.Posting, error) {
	sql, args, err := postgres.Builder().
		Select(postingColumns...).
		From(postingsTable).
		Where(squirrel.Eq{"document_id": documentID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	q := r.txm.GetQuerier(ctx)
	var postings []*accounting.Posting
	if err := pgxscan.Select(ctx, q, &postings, sql, args...); err != nil {
		return nil, fmt.Errorf("select postings: %w", err)
	}
	if len(postings) == 0 {
		return postings, nil
	}

	ids := make([]string, len(postings))
	byID := make(map[string]*accounting.Posting, len(postings))
	for i, p := range postings {
		ids[i] = p.ID
		byID[p.ID] = p
	}
	sql, args, err = postgres.Builder().
		Select(lineColumns...).
		From(linesTable).
		Where(squirrel.Eq{"posting_id": ids}).
		OrderBy("posting_id", "line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}
	var lines []lineRow
	if err := pgxscan.Select(ctx, q, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select posting lines: %w", err)
	}
	for _, l := range lines {
		p := byID[l.PostingID]
		p.Lines = append(p.Lines, accounting.Line{Account: l.Account, Debit: l.Debit, Credit: l.Credit})
	}
	return postings, nil
}

func (r *PostingRepo) Balances(ctx context.Context) ([]accounting.AccountBalance, error) {
	sql, args, err := postgres.Builder().
		Select("account_code", "SUM(debit) AS debit", "SUM(credit) AS credit").
		From(linesTable).
		GroupBy("account_code").
		OrderBy("account_code").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []accounting.AccountBalance
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}
	return out, nil
}
