package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
	Details any    `json:"details,omitempty"`
}

// geofenceRejection is the payload the UI uses to explain a refused fix.
type geofenceRejection struct {
	Operation           string  `json:"operation"`
	Label               string  `json:"label"`
	DistanceMeters      float64 `json:"distanceMeters"`
	ToleranceMeters     float64 `json:"toleranceMeters"`
	RadiusMeters        float64 `json:"radiusMeters"`
	AccuracyBonusMeters float64 `json:"accuracyBonusMeters"`
}

type stateConflict struct {
	Reason             domain.StateConflictReason `json:"reason"`
	ShiftID            string                     `json:"shiftId"`
	ProfessionalUserID string                     `json:"professionalUserId"`
	Status             domain.AttendanceStatus    `json:"status,omitempty"`
}

const maxBodyBytes = 1 << 20

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeBody decodes a JSON body into dst, capped at maxBodyBytes.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// parseNow reads the optional ?now= override (RFC3339). A nil result
// means "use the service clock".
func parseNow(r *http.Request) (*time.Time, error) {
	v := r.URL.Query().Get("now")
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "now", Message: fmt.Sprintf("expected RFC3339 timestamp, got %q", v)}
	}
	return &t, nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var validation *domain.ErrValidation
	var outOfFence *domain.ErrOutOfGeofence
	var conflict *domain.ErrStateConflict
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: err.Error(),
			Code:  "VALIDATION",
			Field: validation.Field,
		})
	case errors.As(err, &outOfFence):
		logger.Debug("fix outside geofence",
			zap.String("label", outOfFence.Label),
			zap.Float64("distance_m", outOfFence.DistanceMeters),
			zap.Float64("tolerance_m", outOfFence.ToleranceMeters),
		)
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: err.Error(),
			Code:  "OUT_OF_GEOFENCE",
			Details: geofenceRejection{
				Operation:           outOfFence.Operation,
				Label:               outOfFence.Label,
				DistanceMeters:      outOfFence.DistanceMeters,
				ToleranceMeters:     outOfFence.ToleranceMeters,
				RadiusMeters:        outOfFence.RadiusMeters,
				AccuracyBonusMeters: outOfFence.AccuracyBonusMeters,
			},
		})
	case errors.As(err, &conflict):
		logger.Debug("state conflict", zap.String("reason", string(conflict.Reason)))
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: err.Error(),
			Code:  "STATE_CONFLICT",
			Details: stateConflict{
				Reason:             conflict.Reason,
				ShiftID:            conflict.ShiftID,
				ProfessionalUserID: conflict.ProfessionalUserID,
				Status:             conflict.Status,
			},
		})
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: "NOT_FOUND"})
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error(), Code: "CIRCUIT_OPEN"})
	case errors.As(err, &external):
		logger.Error("external service failure", zap.String("service", external.Service), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Code: "EXTERNAL_SERVICE"})
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
