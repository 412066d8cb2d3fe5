package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	Development  bool
	RateLimitRPS float64
	RateBurst    int

	// Metrics is served on /metrics when set.
	Metrics http.Handler

	// Recorder receives per-request metrics when set.
	Recorder HTTPRecorder
}

// NewRouter wires middleware and routes.
func NewRouter(ctx context.Context, cfg RouterConfig, analysis *AnalysisHandler, health *HealthHandler, ready *ReadyHandler, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	router.Use(RecoveryMiddleware(logger))
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(logger))
	if cfg.Recorder != nil {
		router.Use(MetricsMiddleware(cfg.Recorder))
	}
	if cfg.Development {
		router.Use(CORSMiddleware())
	}

	router.GET("/health", health.Handle)
	router.GET("/ready", ready.Handle)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	v1 := router.Group("/api/v1")
	if cfg.RateLimitRPS > 0 {
		v1.Use(RateLimitMiddleware(ctx, cfg.RateLimitRPS, cfg.RateBurst, logger))
	}
	{
		v1.POST("/analysis/text", analysis.AnalyzeText)
		v1.POST("/profile", analysis.BuildProfile)
		v1.POST("/compatibility", analysis.AssessCompatibility)
		v1.POST("/personality", analysis.ClassifyPersonality)
		v1.POST("/chat", analysis.Chat)
		v1.GET("/users/:user_id/analyses", analysis.ListHistory)
		v1.GET("/users/:user_id/stats", analysis.UserStats)
		v1.GET("/analyses/:id", analysis.GetAnalysis)
	}

	return router
}
