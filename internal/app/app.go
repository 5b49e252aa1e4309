// Package app assembles the engine from configuration. The server, the
// worker and the seed tool share it so every process runs the same wiring.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"salesledger/internal/config"
	"salesledger/internal/core/tx"
	"salesledger/internal/domain/accounting"
	"salesledger/internal/domain/catalogs"
	"salesledger/internal/domain/documents"
	"salesledger/internal/domain/invoicing"
	"salesledger/internal/domain/numbering"
	"salesledger/internal/domain/registers/stock"
	"salesledger/internal/infrastructure/storage/memory"
	"salesledger/internal/infrastructure/storage/postgres"
	"salesledger/internal/infrastructure/storage/postgres/accounting_repo"
	"salesledger/internal/infrastructure/storage/postgres/catalog_repo"
	"salesledger/internal/infrastructure/storage/postgres/document_repo"
	"salesledger/internal/infrastructure/storage/postgres/numbering_repo"
	"salesledger/internal/infrastructure/storage/postgres/register_repo"
	"salesledger/pkg/logger"
)

// Engine is a fully wired set of domain services.
type Engine struct {
	Invoicing  *invoicing.Service
	Numbering  *numbering.Service
	Stock      *stock.Service
	Accounting *accounting.Service
	TxManager  tx.Manager

	// Catalog writes master data. Seed uses it; the API only reads.
	Catalog CatalogWriter

	// Pool is nil in memory mode.
	Pool *postgres.Pool
}

// CatalogWriter stores master data regardless of the storage backend.
type CatalogWriter interface {
	PutItem(ctx context.Context, item catalogs.Item) error
	PutClient(ctx context.Context, client catalogs.Client) error
	PutPaymentMethod(ctx context.Context, pm catalogs.PaymentMethod) error
}

type catalogReader interface {
	catalogs.Items
	catalogs.Clients
	catalogs.PaymentMethods
}

type repositories struct {
	resolutions numbering.Repository
	stock       stock.Repository
	postings    accounting.Repository
	catalog     catalogReader
	writer      CatalogWriter
	sales       documents.SaleRepository
	returns     documents.ReturnRepository
	txm         tx.Manager
}

// Build opens storage and wires the services. The returned close function
// releases the database pool.
func Build(ctx context.Context, cfg *config.Config) (*Engine, func(), error) {
	var (
		repos repositories
		pool  *postgres.Pool
	)
	closeFn := func() {}

	switch cfg.Storage {
	case config.StoragePostgres:
		p, err := postgres.NewPool(ctx, cfg.PoolConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		if cfg.AutoMigrate {
			if err := postgres.Migrate(ctx, p); err != nil {
				p.Close()
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		pool = p
		closeFn = p.Close
		repos = postgresRepositories(postgres.NewTxManager(p))
		postgres.LogPoolStats(ctx, p)
	default:
		repos = memoryRepositories()
		logger.Info(ctx, "in-memory storage ready")
	}

	num := numbering.NewService(repos.resolutions, numbering.WithLimits(cfg.NumberingLimits()))
	stk := stock.NewService(repos.stock, stock.NewNegativeStockLocations(cfg.NegativeStock()))
	acc := accounting.NewService(accounting.NewGenerator(cfg.AccountPlan()), repos.postings)

	svc := invoicing.NewService(invoicing.Deps{
		Numbering:      num,
		Stock:          stk,
		Accounting:     acc,
		Items:          repos.catalog,
		Clients:        repos.catalog,
		PaymentMethods: repos.catalog,
		Sales:          repos.sales,
		Returns:        repos.returns,
		TxManager:      repos.txm,
	}, invoicing.WithLocation(cfg.Location()))

	return &Engine{
		Invoicing:  svc,
		Numbering:  num,
		Stock:      stk,
		Accounting: acc,
		TxManager:  repos.txm,
		Catalog:    repos.writer,
		Pool:       pool,
	}, closeFn, nil
}

func postgresRepositories(txm *postgres.TxManager) repositories {
	catalog := catalog_repo.NewCatalogRepo(txm)
	return repositories{
		resolutions: numbering_repo.NewResolutionRepo(txm),
		stock:       register_repo.NewStockRepo(txm),
		postings:    accounting_repo.NewPostingRepo(txm),
		catalog:     catalog,
		writer:      catalog,
		sales:       document_repo.NewSaleRepo(txm),
		returns:     document_repo.NewReturnRepo(txm),
		txm:         txm,
	}
}

func memoryRepositories() repositories {
	catalog := memory.NewCatalog()
	return repositories{
		resolutions: memory.NewResolutionRepo(),
		stock:       memory.NewStockRepo(),
		postings:    memory.NewPostingRepo(),
		catalog:     catalog,
		writer:      memoryCatalogWriter{catalog},
		sales:       memory.NewSaleRepo(),
		returns:     memory.NewReturnRepo(),
		txm:         tx.Noop{},
	}
}

type memoryCatalogWriter struct {
	c *memory.Catalog
}

func (w memoryCatalogWriter) PutItem(_ context.Context, item catalogs.Item) error {
	w.c.PutItem(item)
	return nil
}

func (w memoryCatalogWriter) PutClient(_ context.Context, client catalogs.Client) error {
	w.c.PutClient(client)
	return nil
}

func (w memoryCatalogWriter) PutPaymentMethod(_ context.Context, pm catalogs.PaymentMethod) error {
	w.c.PutPaymentMethod(pm)
	return nil
}

// NewRedis connects to REDIS_URL and pings it.
func NewRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opts, err := cfg.RedisOptions()
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
