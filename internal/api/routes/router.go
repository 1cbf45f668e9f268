package routes

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"elimfilters/internal/api/handlers/classification"
	"elimfilters/internal/api/handlers/selfheal"
	"elimfilters/internal/api/handlers/sku"
	"elimfilters/server/middleware"
)

// Handlers набор обработчиков API
type Handlers struct {
	SKU            *sku.Handler
	Classification *classification.Handler
	SelfHeal       *selfheal.Handler
}

// NewRouter создает gin router с middleware и всеми маршрутами
func NewRouter(handlers Handlers, logger *zap.Logger) *gin.Engine {
	// Режим можно переопределить через GIN_MODE
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.GinRequestIDMiddleware())
	router.Use(middleware.GinCORSMiddleware())
	router.Use(middleware.GinLoggerMiddleware(logger))
	router.Use(middleware.GinRecoveryMiddleware(logger))

	RegisterSystemRoutes(router)
	RegisterAPIRoutes(router.Group("/api"), handlers)

	router.NoRoute(func(c *gin.Context) {
		middleware.WriteJSONError(c, "not found", http.StatusNotFound)
	})
	return router
}

// RegisterSystemRoutes health и метрики
func RegisterSystemRoutes(router *gin.Engine) {
	started := time.Now()
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(started).Round(time.Second).String(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RegisterAPIRoutes регистрирует маршруты API. Отсутствующие handlers пропускаются
func RegisterAPIRoutes(api *gin.RouterGroup, handlers Handlers) {
	if h := handlers.SKU; h != nil {
		skuAPI := api.Group("/sku")
		skuAPI.POST("/resolve", h.HandleResolve)
		skuAPI.GET("/:code", h.HandleGetSKU)
	}

	if h := handlers.Classification; h != nil {
		api.POST("/classify", h.HandleClassify)
		api.GET("/rules", h.HandleListRules)
		api.POST("/rules/reload", h.HandleReloadRules)
	}

	if h := handlers.SelfHeal; h != nil {
		selfhealAPI := api.Group("/selfheal")
		selfhealAPI.POST("/run", h.HandleRun)
		selfhealAPI.GET("/failures", h.HandleFailures)
	}
}
