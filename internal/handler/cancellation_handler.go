package handler

import (
	"net/http"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
	"github.com/boddenberg/plantao-presenca-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func recordCancellationHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/orgs/{orgId}/cancellations")
		defer span.End()

		var req domain.CancellationRequest
		if !decodeBody(w, r, &req) {
			return
		}
		tagRecordKey(ctx, span, req.ShiftID, req.Professional.UserID)

		event, err := ledger.RecordCancellation(ctx, OrganizationIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Bool("cancellation.last_minute", event.IsLastMinute))
		writeJSON(w, http.StatusCreated, event)
	}
}

func listCancellationsHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/orgs/{orgId}/cancellations")
		defer span.End()

		events, err := ledger.ListCancellations(ctx, OrganizationIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}
