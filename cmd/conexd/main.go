package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/conex-ia/agentesv2-sub000/internal/config"
	"github.com/conex-ia/agentesv2-sub000/internal/domain"
	"github.com/conex-ia/agentesv2-sub000/internal/handler"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/cache"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/observability"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/postgrest"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/realtime"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/resilience"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/webhook"
	"github.com/conex-ia/agentesv2-sub000/internal/service"
	"github.com/conex-ia/agentesv2-sub000/internal/store"
	"github.com/conex-ia/agentesv2-sub000/internal/sweeper"

	"go.uber.org/zap"
)

func main() {
	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("backend_url", cfg.BackendURL),
		zap.String("realtime_url", cfg.RealtimeURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("delete_grace", cfg.DeleteGrace),
		zap.Duration("sweep_interval", cfg.SweepInterval),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
		zap.Duration("jwt_refresh_ttl", cfg.JWTRefreshTTL),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "conex-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	backendCB := resilience.NewCircuitBreaker("postgrest")
	webhookCB := resilience.NewCircuitBreaker("webhook")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	rows := postgrest.NewClient(
		httpClient,
		cfg.BackendURL,
		cfg.BackendAnonKey,
		cfg.BackendServiceKey,
		backendCB,
		resilienceCfg,
		logger,
	)

	feed := realtime.NewFeed(cfg.RealtimeURL, cfg.BackendAnonKey, cfg.RealtimeSchema, logger)

	workflow := webhook.NewClient(
		cfg.WebhookBaseURL,
		webhook.Paths{
			Training:  cfg.TrainingWebhookPath,
			Product:   cfg.ProductWebhookPath,
			Assistant: cfg.AssistantWebhookPath,
			Session:   cfg.SessionWebhookPath,
			BaseTable: cfg.BaseTableWebhookPath,
			BotLink:   cfg.BotLinkWebhookPath,
		},
		cfg.HTTPTimeout,
		webhookCB,
		resilienceCfg,
		logger,
	)

	// --- Table mirrors ---
	registry := store.NewRegistry(logger)
	defer registry.Shutdown()

	mirrors := service.NewMirrors(registry, feed, rows, metrics, logger)

	// --- Caches ---
	summaryCache := cache.New[*domain.DashboardSummary](cfg.CacheTTL)

	// --- Services ---
	projectSvc := service.NewProjectService(rows, mirrors, cfg.DeleteGrace, metrics, logger)
	baseSvc := service.NewBaseService(rows, mirrors, workflow, cfg.DeleteGrace, metrics, logger)
	trainingSvc := service.NewTrainingService(rows, mirrors, workflow, cfg.StorageBaseURL, metrics, logger)
	productSvc := service.NewProductService(rows, mirrors, workflow, cfg.StorageBaseURL, metrics, logger)
	botSvc := service.NewBotService(rows, mirrors, workflow, metrics, logger)
	labSvc := service.NewLabService(rows, mirrors, workflow, metrics, logger)
	dashboardSvc := service.NewDashboardService(rows, mirrors, summaryCache, metrics, logger)
	authSvc := service.NewAuthService(rows, cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, logger)
	preferenceSvc := service.NewPreferenceService(rows, projectSvc, logger)

	// --- Deletion sweeper ---
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go sweeper.New(rows, cfg.SweepInterval, logger).Run(sweepCtx)

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Auth:        authSvc,
		Dashboard:   dashboardSvc,
		Projects:    projectSvc,
		Bases:       baseSvc,
		Trainings:   trainingSvc,
		Products:    productSvc,
		Bots:        botSvc,
		Lab:         labSvc,
		Preferences: preferenceSvc,
	}, registry, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
