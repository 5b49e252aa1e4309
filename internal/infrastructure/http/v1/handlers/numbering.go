package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"salesledger/internal/core/apperror"
	"salesledger/internal/domain/numbering"
	"salesledger/internal/infrastructure/http/v1/dto"
)

// NumberingHandler exposes the numbering authority.
type NumberingHandler struct {
	*BaseHandler
	service *numbering.Service
	now     func() time.Time
}

// NewNumberingHandler creates the handler. now supplies the business day in
// the configured timezone.
func NewNumberingHandler(base *BaseHandler, service *numbering.Service, now func() time.Time) *NumberingHandler {
	return &NumberingHandler{BaseHandler: base, service: service, now: now}
}

// Resolve handles GET /numbering/resolve
func (h *NumberingHandler) Resolve(c *gin.Context) {
	var q dto.ResolveQuery
	if !h.BindQuery(c, &q) {
		return
	}
	asOf, err := h.day(q.Date)
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.Resolve(c.Request.Context(),
		numbering.Location{BranchID: q.BranchID, SubLocationID: q.SubLocationID},
		numbering.Kind(q.Kind), asOf)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ResolveResponse{Resolution: res, Limits: h.service.CheckLimits(res, asOf)})
}

// Limits handles GET /numbering/resolutions/:id/limits
func (h *NumberingHandler) Limits(c *gin.Context) {
	asOf, err := h.day(c.Query("date"))
	if err != nil {
		h.Error(c, err)
		return
	}
	res, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, h.service.CheckLimits(res, asOf))
}

// Create handles POST /numbering/resolutions
func (h *NumberingHandler) Create(c *gin.Context) {
	var req dto.CreateResolutionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	res, err := h.service.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, res)
}

// List handles GET /numbering/resolutions?branch_id=
func (h *NumberingHandler) List(c *gin.Context) {
	branchID := c.Query("branch_id")
	if branchID == "" {
		h.Error(c, apperror.NewValidation("branch_id is required"))
		return
	}
	list, err := h.service.List(c.Request.Context(), branchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(list))
}

// Deactivate handles POST /numbering/resolutions/:id/deactivate
func (h *NumberingHandler) Deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

func (h *NumberingHandler) day(raw string) (time.Time, error) {
	now := h.now()
	if raw == "" {
		return now, nil
	}
	d, err := time.ParseInLocation("2006-01-02", raw, now.Location())
	if err != nil {
		return time.Time{}, apperror.NewValidation("date must be YYYY-MM-DD").WithDetail("date", raw)
	}
	return d, nil
}
