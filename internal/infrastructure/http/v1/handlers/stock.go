package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"salesledger/internal/core/apperror"
	"salesledger/internal/core/id"
	"salesledger/internal/core/tx"
	"salesledger/internal/domain/invoicing"
	"salesledger/internal/domain/registers/stock"
	"salesledger/internal/infrastructure/http/v1/dto"
)

// StockHandler exposes the stock ledger.
type StockHandler struct {
	*BaseHandler
	service   *stock.Service
	invoicing *invoicing.Service
	txm       tx.Manager
}

func NewStockHandler(base *BaseHandler, service *stock.Service, inv *invoicing.Service, txm tx.Manager) *StockHandler {
	if txm == nil {
		txm = tx.Noop{}
	}
	return &StockHandler{BaseHandler: base, service: service, invoicing: inv, txm: txm}
}

// Validate handles POST /stock/validate. Controlled flags come from the catalog.
func (h *StockHandler) Validate(c *gin.Context) {
	var req dto.ValidateStockRequest
	if !h.BindJSON(c, &req) {
		return
	}
	lines := make([]invoicing.LineRequest, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = invoicing.LineRequest{ItemID: l.ItemID, Quantity: l.Quantity}
	}

	shortages, err := h.invoicing.CheckStock(c.Request.Context(), req.LocationID, lines)
	if err != nil {
		h.Error(c, err)
		return
	}
	if shortages == nil {
		shortages = []stock.Shortage{}
	}
	h.OK(c, dto.ValidateStockResponse{OK: len(shortages) == 0, Shortages: shortages})
}

// Get handles GET /stock/:item_id/:location_id
func (h *StockHandler) Get(c *gin.Context) {
	rec, err := h.service.GetRecord(c.Request.Context(), c.Param("item_id"), c.Param("location_id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rec)
}

// Receive handles POST /stock/receipts
func (h *StockHandler) Receive(c *gin.Context) {
	var req dto.ReceiptRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.Reference == "" {
		req.Reference = id.NewReceiptID()
	}

	var mv *stock.Movement
	err := h.txm.RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
		var err error
		mv, err = h.service.Receive(ctx, req.ItemID, req.LocationID, req.Quantity, req.UnitCost, "receipt", req.Reference)
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, mv)
}

// Transfer handles POST /stock/transfers
func (h *StockHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.Reference == "" {
		req.Reference = id.NewTransferID()
	}

	var resp dto.TransferResponse
	err := h.txm.RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
		var err error
		resp.Out, resp.In, err = h.service.Transfer(ctx, stock.TransferInput{
			ItemID:         req.ItemID,
			FromLocationID: req.FromLocationID,
			ToLocationID:   req.ToLocationID,
			Quantity:       req.Quantity,
			RecorderID:     req.Reference,
		})
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, resp)
}

// Movements handles GET /stock/movements
func (h *StockHandler) Movements(c *gin.Context) {
	var q dto.MovementQuery
	if !h.BindQuery(c, &q) {
		return
	}
	list, err := h.service.ListMovements(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(list))
}

// Balances handles GET /stock?location_id=
func (h *StockHandler) Balances(c *gin.Context) {
	locationID := c.Query("location_id")
	if locationID == "" {
		h.Error(c, apperror.NewValidation("location_id is required"))
		return
	}
	list, err := h.service.ListByLocation(c.Request.Context(), locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(list))
}
