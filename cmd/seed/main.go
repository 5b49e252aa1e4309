// Package main provides a CLI tool for seeding the database with demo master
// data: numbering resolutions, catalog items, clients, payment methods and
// opening stock. Running it twice leaves the data unchanged.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"salesledger/internal/app"
	"salesledger/internal/config"
	"salesledger/internal/core/types"
	"salesledger/internal/domain/accounting"
	"salesledger/internal/domain/catalogs"
	"salesledger/internal/domain/numbering"
	"salesledger/pkg/logger"
)

const (
	demoBranch    = "main"
	demoWarehouse = "main"
)

var demoItems = []catalogs.Item{
	{ID: "laptop-14", Name: "Laptop 14\"", Price: types.MustMoney("3200000"), Cost: types.MustMoney("2400000"), TaxPct: types.MustMoney("19"), Controlled: true},
	{ID: "mouse", Name: "Wireless mouse", Price: types.MustMoney("85000"), Cost: types.MustMoney("42000"), TaxPct: types.MustMoney("19"), Controlled: true},
	{ID: "notebook", Name: "Paper notebook", Price: types.MustMoney("12000"), Cost: types.MustMoney("6500"), TaxPct: types.MustMoney("5"), Controlled: true},
	{ID: "install", Name: "Installation service", Price: types.MustMoney("150000"), TaxPct: types.MustMoney("19"),
		Accounts: accounting.ItemAccounts{Income: "415505"}},
}

var demoStock = map[string]struct {
	qty  int64
	cost string
}{
	"laptop-14": {qty: 20, cost: "2400000"},
	"mouse":     {qty: 150, cost: "42000"},
	"notebook":  {qty: 500, cost: "6500"},
}

var demoClients = []catalogs.Client{
	{ID: "walk-in", Name: "Walk-in customer", AdvanceBalance: types.Zero()},
	{ID: "acme", Name: "ACME S.A.S.", AdvanceBalance: types.MustMoney("1000000")},
}

var demoPaymentMethods = []catalogs.PaymentMethod{
	{ID: "cash", Name: "Cash", Account: "110505"},
	{ID: "card", Name: "Card", Account: "111005"},
	{ID: "transfer", Name: "Bank transfer", Account: "111005"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	if cfg.Storage != config.StoragePostgres {
		log.Fatalw("seed requires postgres storage", "storage", cfg.Storage)
	}

	ctx := logger.WithLogger(context.Background(), log.WithComponent("seed"))
	engine, closeStorage, err := app.Build(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to open storage", "error", err)
	}
	defer closeStorage()

	steps := []struct {
		name string
		fn   func(context.Context, *app.Engine, *logger.Logger) error
	}{
		{"resolutions", seedResolutions},
		{"catalog", seedCatalog},
		{"opening stock", seedStock},
	}
	for _, step := range steps {
		if err := step.fn(ctx, engine, log); err != nil {
			closeStorage()
			logger.Fatal(ctx, "seeding failed", "step", step.name, "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

func seedResolutions(ctx context.Context, e *app.Engine, log *logger.Logger) error {
	existing, err := e.Numbering.List(ctx, demoBranch)
	if err != nil {
		return err
	}
	have := make(map[numbering.Kind]bool, len(existing))
	for _, r := range existing {
		if r.Active {
			have[r.Kind] = true
		}
	}

	now := time.Now()
	for _, in := range []numbering.CreateInput{
		{Kind: numbering.KindSale, Prefix: "FE", AuthorityRef: "18764000000001"},
		{Kind: numbering.KindCredit, Prefix: "NC", AuthorityRef: "18764000000002"},
	} {
		if have[in.Kind] {
			log.Infow("resolution already exists", "branch_id", demoBranch, "kind", in.Kind)
			continue
		}
		in.BranchID = demoBranch
		in.RangeFrom, in.RangeTo = 1, 100000
		in.ValidFrom = now.AddDate(0, 0, -1)
		in.ValidUntil = now.AddDate(2, 0, 0)
		res, err := e.Numbering.Create(ctx, in)
		if err != nil {
			return fmt.Errorf("create %s resolution: %w", in.Kind, err)
		}
		log.Infow("resolution created", "resolution_id", res.ID, "kind", res.Kind, "prefix", res.Prefix)
	}
	return nil
}

func seedCatalog(ctx context.Context, e *app.Engine, log *logger.Logger) error {
	for _, item := range demoItems {
		if err := e.Catalog.PutItem(ctx, item); err != nil {
			return fmt.Errorf("item %s: %w", item.ID, err)
		}
	}
	for _, c := range demoClients {
		if err := e.Catalog.PutClient(ctx, c); err != nil {
			return fmt.Errorf("client %s: %w", c.ID, err)
		}
	}
	for _, pm := range demoPaymentMethods {
		if err := e.Catalog.PutPaymentMethod(ctx, pm); err != nil {
			return fmt.Errorf("payment method %s: %w", pm.ID, err)
		}
	}
	log.Infow("catalog seeded",
		"items", len(demoItems),
		"clients", len(demoClients),
		"payment_methods", len(demoPaymentMethods),
	)
	return nil
}

func seedStock(ctx context.Context, e *app.Engine, log *logger.Logger) error {
	return e.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for itemID, s := range demoStock {
			on, err := e.Stock.GetQuantity(ctx, itemID, demoWarehouse)
			if err != nil {
				return err
			}
			if !on.IsZero() {
				log.Infow("opening stock already present", "item_id", itemID, "quantity", on)
				continue
			}
			if _, err := e.Stock.Receive(ctx, itemID, demoWarehouse, types.NewQuantity(s.qty), types.MustMoney(s.cost), "seed", "opening"); err != nil {
				return fmt.Errorf("receive %s: %w", itemID, err)
			}
		}
		return nil
	})
}
