package postgres

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// Builder returns a squirrel builder using $n placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// InsertRows bulk inserts rows. Inside a transaction it uses the COPY
// protocol; outside one it falls back to a multi-row INSERT.
func (m *TxManager) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	if t := m.GetTx(ctx); t != nil {
		if _, err := t.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows)); err != nil {
			return MapError("copy into", table, err)
		}
		return nil
	}

	q := Builder().Insert(table).Columns(columns...)
	for _, r := range rows {
		q = q.Values(r...)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return err
	}
	if _, err := m.pool.Exec(ctx, sql, args...); err != nil {
		return MapError("insert into", table, err)
	}
	return nil
}
