package handlers

import (
	"github.com/gin-gonic/gin"

	"salesledger/internal/domain/invoicing"
	"salesledger/internal/infrastructure/http/v1/dto"
)

// AccountingHandler exposes postings and the trial balance.
type AccountingHandler struct {
	*BaseHandler
	service *invoicing.Service
}

func NewAccountingHandler(base *BaseHandler, service *invoicing.Service) *AccountingHandler {
	return &AccountingHandler{BaseHandler: base, service: service}
}

// Postings handles GET /documents/:id/postings
func (h *AccountingHandler) Postings(c *gin.Context) {
	list, err := h.service.GetPostingsForDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(list))
}

// Balances handles GET /accounting/balances
func (h *AccountingHandler) Balances(c *gin.Context) {
	list, err := h.service.Balances(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(list))
}
