// Psychodetective - Server Entry Point
//
// Wires the AI orchestrator, caller services, storage and cache behind the
// HTTP API used by the Telegram bot.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/psychodetective/internal/ai"
	"github.com/psychodetective/internal/cache"
	"github.com/psychodetective/internal/config"
	"github.com/psychodetective/internal/handler"
	"github.com/psychodetective/internal/logger"
	"github.com/psychodetective/internal/metrics"
	"github.com/psychodetective/internal/rules"
	"github.com/psychodetective/internal/service"
	"github.com/psychodetective/internal/store"
	"github.com/psychodetective/pkg/sanitizer"
)

const serviceName = "psychodetective"

func main() {
	// Load .env file if it exists (development)
	_ = godotenv.Load()

	isDev := os.Getenv("APP_ENV") == "" || os.Getenv("APP_ENV") == "development"

	zapLogger, err := logger.New(logger.Options{Development: isDev, Service: serviceName})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	cfg, err := config.Load()
	if err != nil {
		zapLogger.Fatal("failed to load configuration", zap.Error(err))
	}

	zapLogger.Info("configuration loaded",
		zap.String("port", cfg.Server.Port),
		zap.String("primary_provider", string(cfg.AI.Primary.Provider)),
		zap.String("primary_model", cfg.AI.Primary.Model),
		zap.String("secondary_provider", string(cfg.AI.Secondary.Provider)),
		zap.Int("max_concurrent_requests", cfg.AI.MaxConcurrentRequests),
		zap.Bool("mock_mode", cfg.AI.MockMode),
		zap.Bool("safety_rules", cfg.Processing.EnableSafetyRules),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(serviceName, reg, zapLogger)

	orch, err := ai.NewOrchestratorFromConfig(cfg.AI, cfg.Profile, collector, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to create orchestrator", zap.Error(err))
	}
	collector.RegisterInFlight(orch.InFlight, orch.Capacity())

	checks := map[string]handler.Check{"ai": orch.HealthCheck}

	var repo service.Repository
	if cfg.Storage.DatabasePath != "" {
		db, err := store.NewDB(cfg.Storage.DatabasePath)
		if err != nil {
			zapLogger.Fatal("failed to open database", zap.String("path", cfg.Storage.DatabasePath), zap.Error(err))
		}
		defer db.Close()
		repo = store.NewAnalysisRepo(db)
		checks["db"] = db.PingContext
	} else {
		zapLogger.Warn("DATABASE_PATH is empty, analyses will not be persisted")
	}

	var resultCache service.ResultCache
	if cfg.Cache.RedisAddr != "" {
		rc, err := cache.New(cache.Config{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			TTL:      cfg.Cache.TTL,
		}, zapLogger)
		if err != nil {
			zapLogger.Warn("result cache unavailable, continuing without it", zap.Error(err))
		} else {
			defer rc.Close()
			resultCache = rc
			checks["cache"] = rc.Ping
		}
	}

	deps := service.Deps{
		Invoker:   orch,
		Profile:   cfg.Profile,
		Sanitizer: sanitizer.New(cfg.Processing.MinTextLength, cfg.Processing.MaxTextLength),
		Rules:     rules.NewEngine(rules.DefaultRules(), cfg.Processing.EnableSafetyRules, zapLogger),
		Cache:     resultCache,
		Store:     repo,
		Metrics:   collector,
		Logger:    zapLogger,
	}

	analysisHandler := handler.NewAnalysisHandler(handler.Services{
		Analyzer:      service.NewAnalyzer(deps),
		Profiler:      service.NewProfiler(deps),
		Compatibility: service.NewCompatibilityService(deps),
		Personality:   service.NewPersonalityService(deps),
		Chat:          service.NewChatService(deps),
		History:       service.NewHistoryService(repo, zapLogger),
	}, zapLogger)

	if !cfg.Server.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handler.NewRouter(ctx, handler.RouterConfig{
		Development:  cfg.Server.Development,
		RateLimitRPS: cfg.RateLimit.RequestsPerSecond,
		RateBurst:    cfg.RateLimit.Burst,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Recorder:     collector,
	}, analysisHandler, handler.NewHealthHandler(zapLogger), handler.NewReadyHandler(checks, zapLogger), zapLogger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("shutting down server...")

	// Give in-flight analyses 10 seconds to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("server stopped")
}
