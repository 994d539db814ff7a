package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/bootstrap"
	"github.com/boddenberg/electritrack-bfa-go/internal/config"
	"github.com/boddenberg/electritrack-bfa-go/internal/handler"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/cache"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/observability"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/publisher"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/store"
	"github.com/boddenberg/electritrack-bfa-go/internal/port"
	"github.com/boddenberg/electritrack-bfa-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg, err := config.LoadWithFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, cfg.ServiceName)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("identity_backend", cfg.IdentityBackend),
		zap.String("timezone", cfg.Timezone),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("watch_interval", cfg.WatchInterval),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
		zap.Bool("mqtt_enabled", cfg.MQTTEnabled),
		zap.Bool("dev_tools", cfg.DevTools),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	appCache := cache.New[any](cfg.CacheTTL)
	defer appCache.Stop()
	revoked := cache.New[bool](cfg.JWTAccessTTL)
	defer revoked.Stop()
	firedAlerts := cache.New[bool](24 * time.Hour)
	defer firedAlerts.Stop()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("store")

	// --- Backends ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	backends, err := bootstrap.Open(context.Background(), cfg, httpClient, cb, resilienceCfg, logger)
	if err != nil {
		logger.Fatal("failed to open backends", zap.Error(err))
	}
	defer backends.Close()

	repo := store.New(backends.KV, logger)

	var alerts port.AlertPublisher = publisher.NewLog(logger)
	if cfg.MQTTEnabled {
		mq, err := publisher.NewMQTT(publisher.Config{
			Broker:      cfg.MQTTBroker,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
		}, logger)
		if err != nil {
			logger.Fatal("failed to connect to MQTT broker", zap.Error(err))
		}
		alerts = mq
	}
	defer alerts.Close()

	// --- Services ---
	loc := cfg.Location()

	authSvc := service.NewAuthService(backends.Identity, revoked, cfg.JWTSecret, cfg.JWTAccessTTL, logger)
	profileSvc := service.NewProfileService(repo, backends.Identity, appCache, metrics, logger)
	dashboardSvc := service.NewDashboardService(service.DashboardDeps{
		Profiles:  profileSvc,
		Devices:   repo,
		Usage:     repo,
		Alerts:    repo,
		Publisher: alerts,
		Cache:     appCache,
		Fired:     firedAlerts,
		Location:  loc,
	}, metrics, logger)

	svc := handler.Services{
		Auth:           authSvc,
		Profile:        profileSvc,
		Dashboard:      dashboardSvc,
		Payments:       service.NewPaymentService(dashboardSvc, repo, cfg.PaymentDelay, metrics, logger),
		Trends:         service.NewTrendsService(repo, repo, loc, metrics, logger),
		Alerts:         service.NewAlertService(repo, metrics, logger),
		Export:         service.NewExportService(dashboardSvc, logger),
		Store:          backends.KV,
		StoreName:      backends.StoreName,
		AllowedOrigins: cfg.AllowedOrigins,
		Streams:        resilience.NewBulkhead(cfg.MaxConcurrency),
	}
	if cfg.DevTools {
		svc.DevTools = service.NewDevToolsService(repo, repo, loc, logger)
		logger.Warn("dev tools enabled: /v1/dev routes are unauthenticated")
	}

	// --- Router ---
	router := handler.NewRouter(svc, metrics, logger)

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
