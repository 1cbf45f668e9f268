package classification

import (
	"github.com/gin-gonic/gin"

	"elimfilters/classification"
	"elimfilters/internal/api/handlers/common"
	"elimfilters/internal/domain/catalog"
)

// Resolver каскад правил, доступный обработчику
type Resolver interface {
	Resolve(code string, hintDuty catalog.Duty) classification.Resolution
	StaticRules() []classification.StaticRule
	LearnedRules() *classification.RuleTable
}

// Reloader перечитывает таблицу выученных правил
type Reloader interface {
	Reload() error
}

// ClassifyRequest запрос классификации кода
type ClassifyRequest struct {
	Code     string `json:"code" binding:"required"`
	DutyHint string `json:"duty_hint"`
}

// ClassifyResponse ответ резолвера
type ClassifyResponse struct {
	classification.Resolution
	Signals string `json:"signals"`
}

// RulesResponse выученные и статические правила в порядке проверки
type RulesResponse struct {
	Learned []classification.LearnedRule `json:"learned"`
	Static  []classification.StaticRule  `json:"static"`
}

// Handler HTTP обработчик классификации кодов
type Handler struct {
	*common.BaseHandler
	resolver Resolver
	reloader Reloader
}

// NewHandler создает обработчик. reloader может быть nil
func NewHandler(base *common.BaseHandler, resolver Resolver, reloader Reloader) *Handler {
	return &Handler{
		BaseHandler: base,
		resolver:    resolver,
		reloader:    reloader,
	}
}

// HandleClassify классифицирует код без генерации SKU
// POST /api/classify
func (h *Handler) HandleClassify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.WriteValidationError(c, "неверный формат тела запроса", err)
		return
	}
	duty, err := catalog.ParseDuty(req.DutyHint)
	if err != nil {
		h.WriteValidationError(c, err.Error(), err)
		return
	}

	res := h.resolver.Resolve(req.Code, duty)
	h.WriteJSONResponse(c, 200, ClassifyResponse{
		Resolution: res,
		Signals:    res.Signals.String(),
	})
}

// HandleListRules возвращает текущие правила
// GET /api/rules
func (h *Handler) HandleListRules(c *gin.Context) {
	learned := h.resolver.LearnedRules().Entries()
	if learned == nil {
		learned = []classification.LearnedRule{}
	}
	h.WriteJSONResponse(c, 200, RulesResponse{
		Learned: learned,
		Static:  h.resolver.StaticRules(),
	})
}

// HandleReloadRules перечитывает файл выученных правил
// POST /api/rules/reload
func (h *Handler) HandleReloadRules(c *gin.Context) {
	if h.reloader != nil {
		if err := h.reloader.Reload(); err != nil {
			h.HandleError(c, err, "failed to reload learned rules")
			return
		}
	}
	h.WriteJSONResponse(c, 200, gin.H{
		"reloaded": true,
		"learned":  h.resolver.LearnedRules().Len(),
	})
}
