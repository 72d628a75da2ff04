package handler

import (
	"fmt"
	"net/http"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/devicefix"
	"github.com/boddenberg/plantao-presenca-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Check-in / check-out (device boundary)
// ============================================================

type checkInBody struct {
	domain.CheckInRequest
	Geo *devicefix.Input `json:"geo"`
}

type checkOutBody struct {
	domain.CheckOutRequest
	Geo *devicefix.Input `json:"geo"`
}

type seedPendingBody struct {
	Assignments []domain.ShiftAssignment `json:"assignments"`
}

func checkInHandler(ledger *service.LedgerService, fixes *devicefix.Verifier, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/orgs/{orgId}/attendance/check-in")
		defer span.End()

		var body checkInBody
		if !decodeBody(w, r, &body) {
			return
		}
		tagRecordKey(ctx, span, body.ShiftID, body.Professional.UserID)

		fix, err := fixes.Resolve(body.Geo)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		req := body.CheckInRequest
		req.Geo = fix

		rec, err := ledger.CheckIn(ctx, OrganizationIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

func checkOutHandler(ledger *service.LedgerService, fixes *devicefix.Verifier, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/orgs/{orgId}/attendance/check-out")
		defer span.End()

		var body checkOutBody
		if !decodeBody(w, r, &body) {
			return
		}
		tagRecordKey(ctx, span, body.ShiftID, body.ProfessionalUserID)

		fix, err := fixes.Resolve(body.Geo)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		req := body.CheckOutRequest
		req.Geo = fix

		rec, err := ledger.CheckOut(ctx, OrganizationIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func seedPendingHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/orgs/{orgId}/attendance/pending")
		defer span.End()

		var body seedPendingBody
		if !decodeBody(w, r, &body) {
			return
		}
		span.SetAttributes(attribute.Int("assignments", len(body.Assignments)))

		resp, err := ledger.SeedPending(ctx, OrganizationIDFromContext(ctx), body.Assignments)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ============================================================
// Read side
// ============================================================

func listRecordsHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/orgs/{orgId}/attendance")
		defer span.End()

		filter := domain.RecordFilter{
			ProfessionalUserID: r.URL.Query().Get("professionalId"),
			Status:             domain.AttendanceStatus(r.URL.Query().Get("status")),
		}
		switch filter.Status {
		case "", domain.StatusPending, domain.StatusCheckedIn, domain.StatusCheckedOut:
		default:
			handleServiceError(w, &domain.ErrValidation{
				Field:   "status",
				Message: fmt.Sprintf("unknown status %q", filter.Status),
			}, logger)
			return
		}

		records, err := ledger.ListRecords(ctx, OrganizationIDFromContext(ctx), filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func getRecordHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/orgs/{orgId}/attendance/{shiftId}/{professionalUserId}")
		defer span.End()

		shiftID := chi.URLParam(r, "shiftId")
		profID := chi.URLParam(r, "professionalUserId")
		tagRecordKey(ctx, span, shiftID, profID)

		rec, err := ledger.GetRecord(ctx, OrganizationIDFromContext(ctx), shiftID, profID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func stressHistoryHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/orgs/{orgId}/professionals/{professionalUserId}/stress")
		defer span.End()

		profID := chi.URLParam(r, "professionalUserId")
		tagRecordKey(ctx, span, "", profID)

		history, err := ledger.StressHistory(ctx, OrganizationIDFromContext(ctx), profID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, history)
	}
}
