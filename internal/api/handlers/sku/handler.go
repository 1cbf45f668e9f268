package sku

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"elimfilters/internal/api/handlers/common"
	skuapp "elimfilters/internal/application/sku"
	"elimfilters/internal/domain/catalog"
)

// PolicyService политика создания SKU
type PolicyService interface {
	ApplyPolicy(ctx context.Context, req skuapp.Request) skuapp.Result
	Lookup(ctx context.Context, code string) (*catalog.Record, error)
}

// ResolveRequest тело запроса на построение SKU
type ResolveRequest struct {
	Code     string  `json:"code" binding:"required"`
	DutyHint string  `json:"duty_hint"`
	Micron   float64 `json:"micron"`
}

// Handler HTTP обработчик SKU
type Handler struct {
	*common.BaseHandler
	service PolicyService
}

// NewHandler создает обработчик SKU
func NewHandler(base *common.BaseHandler, service PolicyService) *Handler {
	return &Handler{BaseHandler: base, service: service}
}

// HandleResolve строит SKU для кода.
// Неудача политики возвращается как 422 с собранными сигналами
// POST /api/sku/resolve
func (h *Handler) HandleResolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.WriteValidationError(c, "неверный формат тела запроса", err)
		return
	}
	duty, err := catalog.ParseDuty(req.DutyHint)
	if err != nil {
		h.WriteValidationError(c, err.Error(), err)
		return
	}
	if req.Micron < 0 {
		h.WriteValidationError(c, "micron must not be negative", nil)
		return
	}

	result := h.service.ApplyPolicy(c.Request.Context(), skuapp.Request{
		Code:     req.Code,
		DutyHint: duty,
		Micron:   req.Micron,
	})
	switch {
	case result.OK:
		h.WriteJSONResponse(c, http.StatusOK, result)
	case errors.Is(result.Err, skuapp.ErrEmptyCode):
		h.WriteValidationError(c, "code is empty after normalization", result.Err)
	default:
		h.WriteJSONResponse(c, http.StatusUnprocessableEntity, result)
	}
}

// HandleGetSKU возвращает сохраненную запись по SKU или исходному коду
// GET /api/sku/:code
func (h *Handler) HandleGetSKU(c *gin.Context) {
	record, err := h.service.Lookup(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, skuapp.ErrEmptyCode) {
			h.WriteValidationError(c, "code is required", err)
			return
		}
		h.HandleError(c, err, "failed to lookup SKU")
		return
	}
	h.WriteJSONResponse(c, http.StatusOK, record)
}
