package domain

import "fmt"

// Error types for consistent error handling across the service.
// All of them are local and non-retryable: the caller must change
// something (move closer, fix the input) rather than retry.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrOutOfGeofence indicates a location fix outside the sector's tolerance.
type ErrOutOfGeofence struct {
	Operation           string
	Label               string
	DistanceMeters      float64
	ToleranceMeters     float64
	RadiusMeters        float64
	AccuracyBonusMeters float64
}

func (e *ErrOutOfGeofence) Error() string {
	return fmt.Sprintf("fora da cerca geográfica '%s': distância=%.1fm tolerância=%.1fm (raio=%.0fm + precisão=%.0fm)",
		e.Label, e.DistanceMeters, e.ToleranceMeters, e.RadiusMeters, e.AccuracyBonusMeters)
}

// StateConflictReason names why a transition was refused.
type StateConflictReason string

const (
	ReasonAlreadyCheckedIn  StateConflictReason = "AlreadyCheckedIn"
	ReasonAlreadyCheckedOut StateConflictReason = "AlreadyCheckedOut"
	ReasonNoCheckIn         StateConflictReason = "NoCheckIn"
	ReasonCancelled         StateConflictReason = "Cancelled"
)

// ErrStateConflict indicates a transition the attendance state machine refuses.
type ErrStateConflict struct {
	Reason             StateConflictReason
	ShiftID            string
	ProfessionalUserID string
	Status             AttendanceStatus
}

func (e *ErrStateConflict) Error() string {
	return fmt.Sprintf("state conflict [%s]: shift=%s professional=%s status=%s",
		e.Reason, e.ShiftID, e.ProfessionalUserID, e.Status)
}

// ErrExternalService indicates a failure in a collaborator or the store.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}
