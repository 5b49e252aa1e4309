package handlers

import (
	"github.com/gin-gonic/gin"

	"salesledger/internal/domain/invoicing"
	"salesledger/internal/infrastructure/http/v1/dto"
)

// SalesHandler exposes sales, returns and quotes.
type SalesHandler struct {
	*BaseHandler
	service *invoicing.Service
}

func NewSalesHandler(base *BaseHandler, service *invoicing.Service) *SalesHandler {
	return &SalesHandler{BaseHandler: base, service: service}
}

// Create handles POST /sales
func (h *SalesHandler) Create(c *gin.Context) {
	var req dto.CreateSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.service.IssueSale(c.Request.Context(), req.ToRequest())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, result)
}

// Get handles GET /sales/:id
func (h *SalesHandler) Get(c *gin.Context) {
	sale, err := h.service.GetSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, sale)
}

// List handles GET /sales
func (h *SalesHandler) List(c *gin.Context) {
	var q dto.SaleQuery
	if !h.BindQuery(c, &q) {
		return
	}
	list, err := h.service.ListSales(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(list))
}

// CanVoid handles GET /sales/:id/can-void
func (h *SalesHandler) CanVoid(c *gin.Context) {
	check, err := h.service.CanVoid(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, check)
}

// CreateReturn handles POST /sales/:id/returns
func (h *SalesHandler) CreateReturn(c *gin.Context) {
	var req dto.CreateReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.service.IssueReturn(c.Request.Context(), req.ToRequest(c.Param("id")))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, result)
}

// ListReturns handles GET /sales/:id/returns
func (h *SalesHandler) ListReturns(c *gin.Context) {
	list, err := h.service.ListReturns(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(list))
}

// GetReturn handles GET /returns/:id
func (h *SalesHandler) GetReturn(c *gin.Context) {
	ret, err := h.service.GetReturn(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, ret)
}

// Quote handles POST /pricing/quote
func (h *SalesHandler) Quote(c *gin.Context) {
	var req dto.QuoteRequest
	if !h.BindJSON(c, &req) {
		return
	}
	quote, err := h.service.Quote(c.Request.Context(), req.ToLines())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, quote)
}
