// Package catalog_repo reads items, clients and payment methods, and moves
// client advance balances atomically.
package catalog_repo

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"salesledger/internal/core/apperror"
	"salesledger/internal/core/types"
	"salesledger/internal/domain/accounting"
	"salesledger/internal/domain/catalogs"
	"salesledger/internal/infrastructure/storage/postgres"
)

type itemRow struct {
	ID                 string        `db:"id"`
	Name               string        `db:"name"`
	Price              types.Money   `db:"price"`
	Cost               types.Money   `db:"cost"`
	TaxPct             types.Percent `db:"tax_pct"`
	Controlled         bool          `db:"controlled"`
	IncomeAccount      string        `db:"income_account"`
	CostOfSalesAccount string        `db:"cost_of_sales_account"`
	InventoryAccount   string        `db:"inventory_account"`
}

var itemColumns = postgres.ExtractDBColumns[itemRow]()

func (r itemRow) toDomain() *catalogs.Item {
	return &catalogs.Item{
		ID:         r.ID,
		Name:       r.Name,
		Price:      r.Price,
		Cost:       r.Cost,
		TaxPct:     r.TaxPct,
		Controlled: r.Controlled,
		Accounts: accounting.ItemAccounts{
			Income:      r.IncomeAccount,
			CostOfSales: r.CostOfSalesAccount,
			Inventory:   r.InventoryAccount,
		},
	}
}

// CatalogRepo implements catalogs.Items, catalogs.Clients and catalogs.PaymentMethods.
type CatalogRepo struct {
	txm *postgres.TxManager
}

var (
	_ catalogs.Items          = (*CatalogRepo)(nil)
	_ catalogs.Clients        = (*CatalogRepo)(nil)
	_ catalogs.PaymentMethods = (*CatalogRepo)(nil)
)

func NewCatalogRepo(txm *postgres.TxManager) *CatalogRepo {
	return &CatalogRepo{txm: txm}
}

func (r *CatalogRepo) GetItem(ctx context.Context, itemID string) (*catalogs.Item, error) {
	var row itemRow
	if err := r.getOne(ctx, &row, "catalog_items", itemColumns, itemID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("item", itemID)
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return row.toDomain(), nil
}

func (r *CatalogRepo) GetClient(ctx context.Context, clientID string) (*catalogs.Client, error) {
	var c catalogs.Client
	if err := r.getOne(ctx, &c, "clients", postgres.ExtractDBColumns[catalogs.Client](), clientID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("client", clientID)
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}

func (r *CatalogRepo) GetPaymentMethod(ctx context.Context, methodID string) (*catalogs.PaymentMethod, error) {
	var pm catalogs.PaymentMethod
	if err := r.getOne(ctx, &pm, "payment_methods", postgres.ExtractDBColumns[catalogs.PaymentMethod](), methodID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("payment method", methodID)
		}
		return nil, fmt.Errorf("get payment method: %w", err)
	}
	return &pm, nil
}

// ConsumeAdvance decrements the balance in one guarded statement so two
// concurrent sales can never drive it below zero.
func (r *CatalogRepo) ConsumeAdvance(ctx context.Context, clientID string, amount types.Money) error {
	sql, args, err := postgres.Builder().
		Update("clients").
		Set("advance_balance", squirrel.Expr("advance_balance - ?", amount)).
		Where(squirrel.Eq{"id": clientID}).
		Where(squirrel.GtOrEq{"advance_balance": amount}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError("update", "client", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	client, err := r.GetClient(ctx, clientID)
	if err != nil {
		return err
	}
	return apperror.NewBusinessRule(apperror.CodeInsufficientAdvance, "Client advance balance is insufficient").
		WithDetail("client_id", clientID).
		WithDetail("requested", amount.String()).
		WithDetail("available", client.AdvanceBalance.String())
}

func (r *CatalogRepo) CreditAdvance(ctx context.Context, clientID string, amount types.Money) error {
	sql, args, err := postgres.Builder().
		Update("clients").
		Set("advance_balance", squirrel.Expr("advance_balance + ?", amount)).
		Where(squirrel.Eq{"id": clientID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError("update", "client", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("client", clientID)
	}
	return nil
}

// PutItem upserts an item. Used by seeding.
func (r *CatalogRepo) PutItem(ctx context.Context, item catalogs.Item) error {
	row := itemRow{
		ID:                 item.ID,
		Name:               item.Name,
		Price:              item.Price,
		Cost:               item.Cost,
		TaxPct:             item.TaxPct,
		Controlled:         item.Controlled,
		IncomeAccount:      item.Accounts.Income,
		CostOfSalesAccount: item.Accounts.CostOfSales,
		InventoryAccount:   item.Accounts.Inventory,
	}
	return r.upsert(ctx, "catalog_items", "item", postgres.StructToMap(row))
}

// PutClient upserts a client.
func (r *CatalogRepo) PutClient(ctx context.Context, client catalogs.Client) error {
	return r.upsert(ctx, "clients", "client", postgres.StructToMap(client))
}

// PutPaymentMethod upserts a payment method.
func (r *CatalogRepo) PutPaymentMethod(ctx context.Context, pm catalogs.PaymentMethod) error {
	return r.upsert(ctx, "payment_methods", "payment method", postgres.StructToMap(pm))
}

func (r *CatalogRepo) getOne(ctx context.Context, dst any, table string, columns []string, id string) error {
	sql, args, err := postgres.Builder().
		Select(columns...).
		From(table).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	return pgxscan.Get(ctx, r.txm.GetQuerier(ctx), dst, sql, args...)
}

func (r *CatalogRepo) upsert(ctx context.Context, table, entity string, values map[string]any) error {
	q := postgres.Builder().Insert(table).SetMap(values)

	set := make([]string, 0, len(values))
	for _, col := range slices.Sorted(maps.Keys(values)) {
		if col != "id" {
			set = append(set, col+" = EXCLUDED."+col)
		}
	}
	sql, args, err := q.Suffix("ON CONFLICT (id) DO UPDATE SET " + strings.Join(set, ", ")).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError("upsert", entity, err)
	}
	return nil
}
