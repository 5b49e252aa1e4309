// Package v1 provides HTTP API version 1.
package v1

import (
	"time"

	"github.com/gin-gonic/gin"

	"salesledger/internal/core/tx"
	"salesledger/internal/domain/invoicing"
	"salesledger/internal/domain/numbering"
	"salesledger/internal/domain/registers/stock"
	"salesledger/internal/infrastructure/http/v1/dto"
	"salesledger/internal/infrastructure/http/v1/handlers"
	"salesledger/internal/infrastructure/http/v1/middleware"
	"salesledger/internal/infrastructure/observability"
	"salesledger/pkg/logger"
)

// RouterConfig holds the dependencies of the API.
type RouterConfig struct {
	Logger *logger.Logger

	Invoicing *invoicing.Service
	Numbering *numbering.Service
	Stock     *stock.Service
	TxManager tx.Manager

	// Clock returns now in the business timezone.
	Clock func() time.Time

	// Idempotency is nil when no store is configured; POSTs then run
	// without deduplication.
	Idempotency middleware.IdempotencyStore

	// Metrics is optional; nil disables /metrics.
	Metrics *observability.Metrics

	Version      string
	Storage      string
	HealthChecks map[string]handlers.Pinger
}

// NewRouter creates and configures the gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	dto.RegisterValidators()
	router := gin.New()

	// Order matters: errors rendered by ErrorHandler still pass through Logger.
	router.Use(middleware.Trace())
	router.Use(middleware.Recovery())
	router.Use(middleware.Actor())
	router.Use(cfg.Metrics.Middleware())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Version, cfg.Storage, cfg.HealthChecks)
	router.GET("/health", healthHandler.Live)
	router.GET("/health/ready", healthHandler.Ready)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := router.Group("/api/v1")
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	registerNumberingRoutes(api, base, cfg)
	registerStockRoutes(api, base, cfg)
	registerDocumentRoutes(api, base, cfg)

	return router
}

func registerNumberingRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewNumberingHandler(base, cfg.Numbering, cfg.Clock)

	g := rg.Group("/numbering")
	g.GET("/resolve", h.Resolve)
	g.GET("/resolutions", h.List)
	g.POST("/resolutions", h.Create)
	g.GET("/resolutions/:id/limits", h.Limits)
	g.POST("/resolutions/:id/deactivate", h.Deactivate)
}

func registerStockRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewStockHandler(base, cfg.Stock, cfg.Invoicing, cfg.TxManager)

	g := rg.Group("/stock")
	g.GET("", h.Balances)
	g.POST("/validate", h.Validate)
	g.POST("/receipts", h.Receive)
	g.POST("/transfers", h.Transfer)
	g.GET("/movements", h.Movements)
	g.GET("/:item_id/:location_id", h.Get)
}

func registerDocumentRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	sales := handlers.NewSalesHandler(base, cfg.Invoicing)
	acc := handlers.NewAccountingHandler(base, cfg.Invoicing)

	rg.POST("/pricing/quote", sales.Quote)

	s := rg.Group("/sales")
	s.GET("", sales.List)
	s.POST("", sales.Create)
	s.GET("/:id", sales.Get)
	s.GET("/:id/can-void", sales.CanVoid)
	s.GET("/:id/returns", sales.ListReturns)
	s.POST("/:id/returns", sales.CreateReturn)

	rg.GET("/returns/:id", sales.GetReturn)
	rg.GET("/documents/:id/postings", acc.Postings)
	rg.GET("/accounting/balances", acc.Balances)
}
