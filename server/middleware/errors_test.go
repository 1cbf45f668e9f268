package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	servererrors "elimfilters/server/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(handler gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(GinRequestIDMiddleware(), GinRecoveryMiddleware(nil), GinLoggerMiddleware(nil))
	r.GET("/test", handler)
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var response ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return response
}

// TestHandleHTTPError_AppError проверяет статус и сообщение AppError
func TestHandleHTTPError_AppError(t *testing.T) {
	r := newTestRouter(func(c *gin.Context) {
		HandleHTTPError(c, nil, servererrors.NewNotFoundError("SKU не найден", nil))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Response status code = %d, want %d", w.Code, http.StatusNotFound)
	}

	response := decodeError(t, w)
	if response.Error != "SKU не найден" {
		t.Errorf("Response.Error = %s, want 'SKU не найден'", response.Error)
	}
	if response.RequestID != "req-1" {
		t.Errorf("Response.RequestID = %s, want req-1", response.RequestID)
	}
	if response.Timestamp == "" {
		t.Error("Response.Timestamp should not be empty")
	}
}

// TestHandleHTTPError_PlainError проверяет, что детали обычной ошибки не уходят клиенту
func TestHandleHTTPError_PlainError(t *testing.T) {
	r := newTestRouter(func(c *gin.Context) {
		HandleHTTPError(c, nil, errors.New("pq: password authentication failed"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Response status code = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	response := decodeError(t, w)
	if response.Error != "Внутренняя ошибка сервера" {
		t.Errorf("Response.Error = %s", response.Error)
	}
}

// TestGinRecoveryMiddleware проверяет обработку паник
func TestGinRecoveryMiddleware(t *testing.T) {
	r := newTestRouter(func(c *gin.Context) {
		panic("test panic")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Response status code = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if response := decodeError(t, w); response.Error == "" {
		t.Error("Response should contain error message")
	}
}

// TestGinRequestIDMiddleware проверяет генерацию и проброс request ID
func TestGinRequestIDMiddleware(t *testing.T) {
	var fromContext string
	r := newTestRouter(func(c *gin.Context) {
		fromContext = GetRequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	header := w.Header().Get(RequestIDHeader)
	if header == "" {
		t.Fatal("X-Request-ID header should be set")
	}
	if fromContext != header {
		t.Errorf("Request ID in context = %s, want %s", fromContext, header)
	}
}

// TestGinCORSMiddleware_OPTIONS проверяет обработку preflight запросов
func TestGinCORSMiddleware_OPTIONS(t *testing.T) {
	r := gin.New()
	r.Use(GinCORSMiddleware())
	r.POST("/test", func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.OPTIONS("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/test", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("OPTIONS request status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Access-Control-Allow-Origin header should be set for OPTIONS request")
	}
}

func TestGetRequestIDNilContext(t *testing.T) {
	if id := GetRequestID(nil); id != "" {
		t.Errorf("GetRequestID(nil) = %q, want empty", id)
	}
	if id := GetRequestIDFromGin(nil); id != "" {
		t.Errorf("GetRequestIDFromGin(nil) = %q, want empty", id)
	}
}
