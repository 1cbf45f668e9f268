package common

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "elimfilters/server/errors"
	"elimfilters/server/middleware"
)

// BaseHandler общие ответы для всех handlers
type BaseHandler struct {
	logger *zap.Logger
}

// NewBaseHandler создает базовый обработчик. logger может быть nil
func NewBaseHandler(logger *zap.Logger) *BaseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BaseHandler{logger: logger}
}

// Logger логгер обработчика
func (h *BaseHandler) Logger() *zap.Logger {
	return h.logger
}

// WriteJSONResponse записывает JSON ответ
func (h *BaseHandler) WriteJSONResponse(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// WriteValidationError отвечает 400 с сообщением для клиента
func (h *BaseHandler) WriteValidationError(c *gin.Context, message string, err error) {
	middleware.HandleHTTPError(c, h.logger, apperrors.NewValidationError(message, err))
}

// HandleError отображает доменную ошибку на HTTP статус и отвечает JSON.
// Маршрут попадает в контекст ошибки для лога
func (h *BaseHandler) HandleError(c *gin.Context, err error, message string) {
	appErr := apperrors.FromDomain(err, message)
	if appErr != nil && appErr.GetContext() == "" {
		appErr = appErr.WithContext(c.Request.Method + " " + c.FullPath())
	}
	middleware.HandleHTTPError(c, h.logger, appErr)
}
