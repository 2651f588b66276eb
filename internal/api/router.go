package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/glasshouse-ai/glasshouse/pkg/observability"
)

// NewRouter assembles the full HTTP surface: middleware, API routes,
// health and Prometheus metrics.
func NewRouter(handler *Handler, metrics *observability.Metrics, logger observability.Logger) *gin.Engine {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger(logger.WithPrefix("http")))
	router.Use(Metrics(metrics))

	router.GET("/health", handler.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.RegisterRoutes(router)
	return router
}
