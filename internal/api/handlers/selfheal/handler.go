package selfheal

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"elimfilters/internal/api/handlers/common"
	"elimfilters/internal/domain/catalog"
	"elimfilters/selfheal"
	apperrors "elimfilters/server/errors"
	"elimfilters/server/middleware"
)

const (
	defaultFailuresLimit = 50
	maxFailuresLimit     = 1000
)

// Miner запуск майнера правил
type Miner interface {
	Run(ctx context.Context) (*selfheal.RunSummary, error)
}

// FailureReader чтение журнала неудач
type FailureReader interface {
	Latest(limit int) ([]catalog.FailureEvent, error)
}

// Handler HTTP обработчик самообучения
type Handler struct {
	*common.BaseHandler
	miner    Miner
	failures FailureReader
}

// NewHandler создает обработчик самообучения
func NewHandler(base *common.BaseHandler, miner Miner, failures FailureReader) *Handler {
	return &Handler{BaseHandler: base, miner: miner, failures: failures}
}

// HandleRun запускает майнер один раз. Параллельный запуск дает 409
// POST /api/selfheal/run
func (h *Handler) HandleRun(c *gin.Context) {
	summary, err := h.miner.Run(c.Request.Context())
	if err != nil {
		if errors.Is(err, selfheal.ErrMinerBusy) {
			middleware.HandleHTTPError(c, h.Logger(), apperrors.NewConflictError("майнер уже запущен", err))
			return
		}
		h.HandleError(c, err, "self-heal run failed")
		return
	}
	h.WriteJSONResponse(c, http.StatusOK, summary)
}

// HandleFailures возвращает последние события журнала, новые первыми
// GET /api/selfheal/failures?limit=
func (h *Handler) HandleFailures(c *gin.Context) {
	limit := defaultFailuresLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.WriteValidationError(c, "limit must be a positive integer", err)
			return
		}
		limit = min(parsed, maxFailuresLimit)
	}

	events, err := h.failures.Latest(limit)
	if err != nil {
		h.HandleError(c, err, "failed to read failure log")
		return
	}
	if events == nil {
		events = []catalog.FailureEvent{}
	}
	h.WriteJSONResponse(c, http.StatusOK, gin.H{
		"count":    len(events),
		"failures": events,
	})
}
