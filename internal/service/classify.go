package service

import (
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
)

// AbandonmentThresholdMinutes is both the early check-out that counts as
// abandonment and the grace after the scheduled end for a missing check-out.
const AbandonmentThresholdMinutes = 30

// IsAbandonment labels a shift left significantly early, or never checked
// out long after it ended.
func IsAbandonment(r *domain.AttendanceRecord, now time.Time) bool {
	switch {
	case r.HasCheckOut():
		return r.EarlyCheckoutMinutes >= AbandonmentThresholdMinutes
	case r.HasCheckIn():
		return !now.Before(r.ScheduledEndAt.Add(AbandonmentThresholdMinutes * time.Minute))
	}
	return false
}

// IsInstitutionCompleted reports a check-out that was not an abandonment.
func IsInstitutionCompleted(r *domain.AttendanceRecord) bool {
	return r.HasCheckOut() && !IsAbandonment(r, *r.CheckOutAt)
}

// IsLastMinuteCancellation reports a cancellation made within six hours
// before the scheduled start.
func IsLastMinuteCancellation(e *domain.CancellationEvent) bool {
	hours := e.ScheduledStartAt.Sub(e.CancelledAt).Hours()
	return hours >= 0 && hours <= domain.LastMinuteWindowHours
}

// cancelledKeys indexes the (shift, professional) keys that were called off.
func cancelledKeys(events []domain.CancellationEvent) map[domain.RecordKey]bool {
	keys := make(map[domain.RecordKey]bool, len(events))
	for i := range events {
		keys[domain.RecordKey{ShiftID: events[i].ShiftID, ProfessionalUserID: events[i].ProfessionalUserID}] = true
	}
	return keys
}

// supersededByCancellation reports whether r is a pending record whose
// shift was cancelled; the cancellation alone represents that shift.
func supersededByCancellation(r *domain.AttendanceRecord, cancelled map[domain.RecordKey]bool) bool {
	return r.Status == domain.StatusPending && cancelled[r.Key()]
}
