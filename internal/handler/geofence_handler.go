package handler

import (
	"net/http"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
	"github.com/boddenberg/plantao-presenca-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func listGeofencesHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/orgs/{orgId}/geofences")
		defer span.End()

		fences, err := ledger.ListGeofences(ctx, OrganizationIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, fences)
	}
}

func resolveGeofenceHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/orgs/{orgId}/geofences/{sectorId}")
		defer span.End()

		sectorID := chi.URLParam(r, "sectorId")
		span.SetAttributes(attribute.String("sector.id", sectorID))

		fence, err := ledger.ResolveGeofence(ctx, OrganizationIDFromContext(ctx), sectorID, r.URL.Query().Get("sectorName"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, fence)
	}
}

func upsertGeofenceHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/orgs/{orgId}/geofences/{sectorId}")
		defer span.End()

		var in domain.GeofenceInput
		if !decodeBody(w, r, &in) {
			return
		}
		in.SectorID = chi.URLParam(r, "sectorId")
		span.SetAttributes(attribute.String("sector.id", in.SectorID))

		fence, err := ledger.UpsertGeofence(ctx, OrganizationIDFromContext(ctx), in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, fence)
	}
}
