package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/config"
	"github.com/boddenberg/plantao-presenca-go/internal/handler"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/cache"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/client"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/devicefix"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/memory"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/observability"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/postgres"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/resilience"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/supabase"
	"github.com/boddenberg/plantao-presenca-go/internal/port"
	"github.com/boddenberg/plantao-presenca-go/internal/service"

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

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	loc, _ := cfg.Location()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("timezone", cfg.Timezone),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("analytics_cache_ttl", cfg.AnalyticsCacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Bool("require_device_fix", cfg.RequireDeviceFix),
		zap.Duration("prediction_horizon", cfg.PredictionHorizon),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, observability.ServiceName)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// --- Geofence seed ---
	var seed *config.GeofenceSeed
	if cfg.GeofencesFile != "" {
		seed, err = config.LoadGeofenceSeed(cfg.GeofencesFile)
		if err != nil {
			logger.Fatal("failed to load geofence seed", zap.Error(err))
		}
	}
	orgIDs := append([]string{}, cfg.Organizations...)
	if seed != nil {
		for _, o := range seed.Organizations {
			orgIDs = append(orgIDs, o.ID)
		}
	}

	// --- Ledger store ---
	store, err := openStore(cfg, orgIDs, httpClient, resilienceCfg, logger)
	if err != nil {
		logger.Fatal("failed to open ledger store", zap.Error(err))
	}

	// --- Collaborators ---
	var schedule port.ScheduleProvider = client.StaticSchedule{Location: loc}
	if cfg.ScheduleAPIURL != "" {
		schedule = client.NewScheduleClient(httpClient, cfg.ScheduleAPIURL, resilience.NewCircuitBreaker("schedule-api"), resilienceCfg)
		logger.Info("schedule collaborator enabled", zap.String("url", cfg.ScheduleAPIURL))
	}
	var roster port.RosterProvider = client.StaticRoster{}
	if cfg.RosterAPIURL != "" {
		roster = client.NewRosterClient(httpClient, cfg.RosterAPIURL, resilience.NewCircuitBreaker("roster-api"), resilienceCfg)
		logger.Info("roster collaborator enabled", zap.String("url", cfg.RosterAPIURL))
	}

	// --- Services ---
	clock := service.SystemClock{}
	ledgerSvc := service.NewLedgerService(store, clock, service.NewULIDGenerator(), loc, metrics, logger)

	if seed != nil {
		applyGeofenceSeed(ledgerSvc, seed, logger)
	}

	analyticsCache := cache.New[any](cfg.AnalyticsCacheTTL)
	defer analyticsCache.Close()

	analyticsSvc := service.NewAnalyticsService(service.AnalyticsDeps{
		Ledger:   ledgerSvc,
		Roster:   roster,
		Schedule: schedule,
		Commute:  service.HashCommuteEstimator{},
		Cache:    analyticsCache,
		Bulkhead: resilience.NewBulkhead(cfg.MaxConcurrency),
		Clock:    clock,
		Horizon:  cfg.PredictionHorizon,
		Metrics:  metrics,
		Logger:   logger,
	})

	fixes := devicefix.NewVerifier(cfg.DeviceFixSecret, cfg.RequireDeviceFix, clock.Now)
	if cfg.DeviceFixSecret == "" {
		logger.Warn("DEVICE_FIX_SECRET not set: device-reported sources are trusted as-is")
	}

	// --- Router ---
	router := handler.NewRouter(ledgerSvc, analyticsSvc, fixes, metrics, logger)

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

// openStore builds the configured ledger store.
func openStore(cfg *config.Config, orgIDs []string, httpClient *http.Client, resilienceCfg resilience.Config, logger *zap.Logger) (port.LedgerStore, error) {
	switch cfg.StoreBackend {
	case config.StoreSupabase:
		logger.Info("using Supabase as ledger store", zap.String("supabase_url", cfg.SupabaseURL))
		return supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			resilienceCfg,
			logger,
		), nil
	case config.StorePostgres:
		pg, err := postgres.Open(cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
		defer cancel()
		if err := pg.EnsureOrganizations(ctx, orgIDs...); err != nil {
			return nil, err
		}
		return pg, nil
	default:
		logger.Info("using in-memory ledger store", zap.Strings("organizations", orgIDs))
		return memory.NewStore(orgIDs...), nil
	}
}

// applyGeofenceSeed upserts the seeded geofences. Failures are logged and
// skipped so a bad entry does not block startup.
func applyGeofenceSeed(ledger *service.LedgerService, seed *config.GeofenceSeed, logger *zap.Logger) {
	ctx := context.Background()
	applied := 0
	for _, o := range seed.Organizations {
		for _, g := range o.Geofences {
			if _, err := ledger.UpsertGeofence(ctx, o.ID, g.Input()); err != nil {
				logger.Warn("geofence seed entry rejected",
					zap.String("organization_id", o.ID),
					zap.String("sector_id", g.SectorID),
					zap.Error(err),
				)
				continue
			}
			applied++
		}
	}
	logger.Info("geofence seed applied", zap.Int("geofences", applied))
}
