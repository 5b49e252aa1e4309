package postgres

import (
	"context"
	"fmt"

	"salesledger/pkg/logger"
)

// schema is applied statement by statement; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS numbering_resolutions (
		id              TEXT PRIMARY KEY,
		branch_id       TEXT NOT NULL,
		sub_location_id TEXT NOT NULL DEFAULT '',
		kind            TEXT NOT NULL,
		prefix          TEXT NOT NULL,
		authority_ref   TEXT NOT NULL DEFAULT '',
		range_from      BIGINT NOT NULL,
		range_to        BIGINT NOT NULL,
		current_number  BIGINT NOT NULL,
		valid_from      TIMESTAMPTZ NOT NULL,
		valid_until     TIMESTAMPTZ NOT NULL,
		active          BOOLEAN NOT NULL DEFAULT TRUE,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (range_from >= 1 AND range_from <= range_to),
		CHECK (current_number >= range_from AND current_number <= range_to + 1)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_numbering_resolutions_branch ON numbering_resolutions (branch_id, kind) WHERE active`,

	`CREATE TABLE IF NOT EXISTS stock_records (
		item_id     TEXT NOT NULL,
		location_id TEXT NOT NULL,
		quantity    BIGINT NOT NULL DEFAULT 0,
		avg_cost    NUMERIC(20, 6) NOT NULL DEFAULT 0,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (item_id, location_id)
	)`,
	`CREATE TABLE IF NOT EXISTS stock_movements (
		id            TEXT PRIMARY KEY,
		item_id       TEXT NOT NULL,
		location_id   TEXT NOT NULL,
		direction     TEXT NOT NULL,
		quantity      BIGINT NOT NULL,
		unit_cost     NUMERIC(20, 6) NOT NULL,
		balance_qty   BIGINT NOT NULL,
		balance_cost  NUMERIC(20, 6) NOT NULL,
		clamped       BOOLEAN NOT NULL DEFAULT FALSE,
		recorder_type TEXT NOT NULL DEFAULT '',
		recorder_id   TEXT NOT NULL DEFAULT '',
		period        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_movements_item ON stock_movements (item_id, location_id, period)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_movements_recorder ON stock_movements (recorder_id)`,

	`CREATE TABLE IF NOT EXISTS sale_documents (
		id                TEXT PRIMARY KEY,
		resolution_id     TEXT NOT NULL REFERENCES numbering_resolutions (id),
		branch_id         TEXT NOT NULL,
		sub_location_id   TEXT NOT NULL DEFAULT '',
		warehouse_id      TEXT NOT NULL,
		client_id         TEXT NOT NULL DEFAULT '',
		payment_method_id TEXT NOT NULL DEFAULT '',
		issue_date        TIMESTAMPTZ NOT NULL,
		lines             JSONB NOT NULL,
		subtotal          NUMERIC(20, 2) NOT NULL,
		total_discount    NUMERIC(20, 2) NOT NULL,
		total_tax         NUMERIC(20, 2) NOT NULL,
		total             NUMERIC(20, 2) NOT NULL,
		cost_total        NUMERIC(20, 2) NOT NULL,
		advance_applied   NUMERIC(20, 2) NOT NULL DEFAULT 0,
		paid              BOOLEAN NOT NULL DEFAULT FALSE,
		status            TEXT NOT NULL,
		validation_status TEXT NOT NULL,
		validation_note   TEXT NOT NULL DEFAULT '',
		returned          JSONB NOT NULL DEFAULT '{}'::jsonb,
		note              TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sale_documents_branch ON sale_documents (branch_id, issue_date)`,
	`CREATE INDEX IF NOT EXISTS idx_sale_documents_client ON sale_documents (client_id) WHERE client_id <> ''`,

	`CREATE TABLE IF NOT EXISTS return_documents (
		id                TEXT PRIMARY KEY,
		original_id       TEXT NOT NULL REFERENCES sale_documents (id),
		resolution_id     TEXT NOT NULL REFERENCES numbering_resolutions (id),
		branch_id         TEXT NOT NULL,
		sub_location_id   TEXT NOT NULL DEFAULT '',
		warehouse_id      TEXT NOT NULL,
		client_id         TEXT NOT NULL DEFAULT '',
		reason            TEXT NOT NULL,
		issue_date        TIMESTAMPTZ NOT NULL,
		lines             JSONB NOT NULL,
		subtotal          NUMERIC(20, 2) NOT NULL,
		total_discount    NUMERIC(20, 2) NOT NULL,
		total_tax         NUMERIC(20, 2) NOT NULL,
		total             NUMERIC(20, 2) NOT NULL,
		cost_total        NUMERIC(20, 2) NOT NULL,
		credited_advance  BOOLEAN NOT NULL DEFAULT FALSE,
		validation_status TEXT NOT NULL,
		validation_note   TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_return_documents_original ON return_documents (original_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS postings (
		id           TEXT PRIMARY KEY,
		document_id  TEXT NOT NULL,
		kind         TEXT NOT NULL,
		posting_date TIMESTAMPTZ NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_postings_document ON postings (document_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS posting_lines (
		posting_id   TEXT NOT NULL REFERENCES postings (id),
		line_no      INT NOT NULL,
		account_code TEXT NOT NULL,
		debit        NUMERIC(20, 2) NOT NULL DEFAULT 0,
		credit       NUMERIC(20, 2) NOT NULL DEFAULT 0,
		PRIMARY KEY (posting_id, line_no),
		CHECK ((debit > 0 AND credit = 0) OR (credit > 0 AND debit = 0))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posting_lines_account ON posting_lines (account_code)`,

	`CREATE TABLE IF NOT EXISTS catalog_items (
		id                    TEXT PRIMARY KEY,
		name                  TEXT NOT NULL,
		price                 NUMERIC(20, 2) NOT NULL DEFAULT 0,
		cost                  NUMERIC(20, 6) NOT NULL DEFAULT 0,
		tax_pct               NUMERIC(7, 4) NOT NULL DEFAULT 0,
		controlled            BOOLEAN NOT NULL DEFAULT FALSE,
		income_account        TEXT NOT NULL DEFAULT '',
		cost_of_sales_account TEXT NOT NULL DEFAULT '',
		inventory_account     TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS clients (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		advance_balance NUMERIC(20, 2) NOT NULL DEFAULT 0 CHECK (advance_balance >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS payment_methods (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		account_code TEXT NOT NULL
	)`,
}

// Migrate creates the schema.
func Migrate(ctx context.Context, pool *Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	logger.Info(ctx, "database schema ready", "statements", len(schema))
	return nil
}
