// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
)

// LedgerStore persists one organization's geofences, attendance records
// and cancellation events. Called only at mutation boundaries and at
// snapshot load.
type LedgerStore interface {
	// LoadSnapshot returns *domain.ErrNotFound for an unknown organization.
	LoadSnapshot(ctx context.Context, orgID string) (*domain.LedgerSnapshot, error)
	SaveGeofence(ctx context.Context, orgID string, g *domain.Geofence) error
	SaveRecord(ctx context.Context, orgID string, r *domain.AttendanceRecord) error
	SaveCancellation(ctx context.Context, orgID string, e *domain.CancellationEvent) error
	Ping(ctx context.Context) error
}

// Clock supplies the current time. Injected so scoring, abandonment and
// prediction are deterministic under test.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints identifiers for new attendance records.
type IDGenerator interface {
	New(at time.Time) (string, error)
}

// ScheduleProvider lists shift assignments from the scheduling collaborator.
type ScheduleProvider interface {
	ListAssignments(ctx context.Context, orgID string, from, to time.Time) ([]domain.ShiftAssignment, error)
}

// RosterProvider lists professionals from the roster/identity collaborator.
type RosterProvider interface {
	ListProfessionals(ctx context.Context, orgID string) ([]domain.Professional, error)
}

// CommuteEstimator estimates the commute distance of a professional to a
// sector in kilometres.
type CommuteEstimator interface {
	EstimateKm(professionalUserID, sectorName string) float64
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
