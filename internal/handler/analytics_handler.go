package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/export"
	"github.com/boddenberg/plantao-presenca-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Manager analytics & predictive risk
// ============================================================

func managerAnalyticsHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/orgs/{orgId}/analytics/manager")
		defer span.End()

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		result, err := svc.ManagerAnalytics(ctx, OrganizationIDFromContext(ctx), now)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func managerAnalyticsExportHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/orgs/{orgId}/analytics/manager.xlsx")
		defer span.End()

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		orgID := OrganizationIDFromContext(ctx)
		result, err := svc.ManagerAnalytics(ctx, orgID, now)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		// Render fully before writing headers so a failure still yields JSON.
		var buf bytes.Buffer
		if err := export.WriteManagerAnalytics(&buf, result); err != nil {
			handleServiceError(w, fmt.Errorf("render spreadsheet: %w", err), logger)
			return
		}

		w.Header().Set("Content-Type", export.ContentTypeXLSX)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="presenca-%s.xlsx"`, orgID))
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil {
			logger.Warn("spreadsheet write interrupted", zap.Error(err))
		}
	}
}

func predictiveRiskHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/orgs/{orgId}/analytics/predictive")
		defer span.End()

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		report, err := svc.PredictiveRisk(ctx, OrganizationIDFromContext(ctx), now)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func predictiveRiskForHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/orgs/{orgId}/analytics/predictive")
		defer span.End()

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		var body domain.PredictiveRequest
		if !decodeBody(w, r, &body) {
			return
		}

		report, err := svc.PredictiveRiskFor(ctx, OrganizationIDFromContext(ctx), now, body.Assignments)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
