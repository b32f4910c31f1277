package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/affordd/affordd-go/internal/config"
	"github.com/affordd/affordd-go/internal/domain"
	"github.com/affordd/affordd-go/internal/handler"
	"github.com/affordd/affordd-go/internal/infra/advisor"
	"github.com/affordd/affordd-go/internal/infra/cache"
	"github.com/affordd/affordd-go/internal/infra/observability"
	"github.com/affordd/affordd-go/internal/infra/resilience"
	"github.com/affordd/affordd-go/internal/infra/supabase"
	"github.com/affordd/affordd-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("advisor_model", cfg.AdvisorModel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("advisor_timeout", cfg.AdvisorTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
	)

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "affordd")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	accountCache := cache.New[*domain.UserAccount](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	storeCB := resilience.NewCircuitBreaker("supabase")
	advisorCB := resilience.NewCircuitBreaker("advisor")
	advisorBulkhead := resilience.NewBulkhead(cfg.MaxConcurrency)

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	advisorHTTPClient := &http.Client{Timeout: cfg.AdvisorTimeout}

	store := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		storeCB,
		resilienceCfg,
		logger,
	)
	advisorClient := advisor.NewClient(advisorHTTPClient, cfg.AdvisorURL, cfg.AdvisorModel, advisorCB, metrics)

	// --- Services ---
	migrator := service.NewMigrator(logger)
	ledgerSvc := service.NewLedgerService(store, migrator, accountCache, metrics, logger)
	suggestionSvc := service.NewSuggestionService(store, metrics, logger)
	scorer := service.NewScorer(ledgerSvc, suggestionSvc, advisorClient, advisorBulkhead, cfg.AdvisorTimeout, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(ledgerSvc, scorer, suggestionSvc, cfg.JWTSecret, metrics, logger)

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
