package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/devicefix"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/observability"
	"github.com/boddenberg/plantao-presenca-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(ledger *service.LedgerService, analytics *service.AnalyticsService, fixes *devicefix.Verifier, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.AccessLogMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(ledger, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/presence", presenceMetricsHandler(metrics))

		r.Route("/orgs/{orgId}", func(r chi.Router) {
			r.Use(OrganizationMiddleware(logger))

			// =============================================
			// 1. Geofences
			// =============================================
			r.Get("/geofences", listGeofencesHandler(ledger, logger))
			r.Get("/geofences/{sectorId}", resolveGeofenceHandler(ledger, logger))
			r.Put("/geofences/{sectorId}", upsertGeofenceHandler(ledger, logger))

			// =============================================
			// 2. Attendance
			// =============================================
			r.Post("/attendance/check-in", checkInHandler(ledger, fixes, logger))
			r.Post("/attendance/check-out", checkOutHandler(ledger, fixes, logger))
			r.Post("/attendance/pending", seedPendingHandler(ledger, logger))
			r.Get("/attendance", listRecordsHandler(ledger, logger))
			r.Get("/attendance/{shiftId}/{professionalUserId}", getRecordHandler(ledger, logger))

			// =============================================
			// 3. Cancellations
			// =============================================
			r.Post("/cancellations", recordCancellationHandler(ledger, logger))
			r.Get("/cancellations", listCancellationsHandler(ledger, logger))

			// =============================================
			// 4. Analytics
			// =============================================
			r.Get("/analytics/manager", managerAnalyticsHandler(analytics, logger))
			r.Get("/analytics/manager.xlsx", managerAnalyticsExportHandler(analytics, logger))
			r.Get("/analytics/predictive", predictiveRiskHandler(analytics, logger))
			r.Post("/analytics/predictive", predictiveRiskForHandler(analytics, logger))

			// =============================================
			// 5. Professional self-service
			// =============================================
			r.Get("/professionals/{professionalUserId}/stress", stressHistoryHandler(ledger, logger))
		})
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "presenca-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		start := time.Now()
		err := ledger.Ping(r.Context())
		latency := time.Since(start).Milliseconds()
		status := "healthy"
		if err != nil {
			logger.Warn("ledger store readiness check failed", zap.Error(err))
			status = "degraded"
		}
		services = append(services, domain.ServiceHealth{
			Name: "ledger-store", Status: status, LatencyMs: latency, LastChecked: now,
		})

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func presenceMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
