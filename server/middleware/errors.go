package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"elimfilters/internal/metrics"
)

// HTTPError интерфейс для ошибок с HTTP статусом и сообщением
// Используется для избежания циклических зависимостей
type HTTPError interface {
	error
	StatusCode() int
	UserMessage() string
	GetContext() string
	Unwrap() error
}

// ErrorResponse структура ответа об ошибке
type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteJSONError записывает JSON ошибку с request ID запроса
func WriteJSONError(c *gin.Context, message string, statusCode int) {
	metrics.HTTPErrorsTotal.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.JSON(statusCode, ErrorResponse{
		Error:     message,
		Timestamp: time.Now().Format(time.RFC3339),
		RequestID: GetRequestIDFromGin(c),
	})
}

// HandleHTTPError отвечает JSON ошибкой.
// Для HTTPError берутся статус и сообщение, остальное становится 500
func HandleHTTPError(c *gin.Context, logger *zap.Logger, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	reqID := GetRequestIDFromGin(c)

	statusCode := http.StatusInternalServerError
	message := "Внутренняя ошибка сервера"

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		statusCode = httpErr.StatusCode()
		message = httpErr.UserMessage()
	}

	fields := []zap.Field{
		zap.Error(err),
		zap.Int("status_code", statusCode),
		zap.String("request_id", reqID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
	}
	if httpErr != nil && httpErr.GetContext() != "" {
		fields = append(fields, zap.String("context", httpErr.GetContext()))
	}
	if statusCode >= 500 {
		logger.Error("HTTP error", fields...)
	} else {
		logger.Warn("HTTP error", fields...)
	}

	_ = c.Error(err)
	WriteJSONError(c, message, statusCode)
	c.Abort()
}
