package domain

import "time"

// LastMinuteWindowHours bounds how close to the start a cancellation
// counts as last-minute.
const LastMinuteWindowHours = 6.0

// CancellationEvent records a shift called off before check-in. Created
// once, never mutated.
type CancellationEvent struct {
	ID                 string    `json:"id"`
	ShiftID            string    `json:"shiftId"`
	ProfessionalUserID string    `json:"professionalUserId"`
	ProfessionalName   string    `json:"professionalName"`
	SectorID           string    `json:"sectorId,omitempty"`
	SectorName         string    `json:"sectorName"`
	ScheduledStartAt   time.Time `json:"scheduledStartAt"`
	CancelledAt        time.Time `json:"cancelledAt"`
	Reason             string    `json:"reason,omitempty"`
	IsLastMinute       bool      `json:"isLastMinute"`
}

// CancellationRequest is the body for POST /v1/orgs/{orgId}/cancellations.
type CancellationRequest struct {
	ShiftID          string       `json:"shiftId"`
	Professional     Professional `json:"professional"`
	Sector           Sector       `json:"sector"`
	ScheduledStartAt time.Time    `json:"scheduledStartAt"`
	CancelledAt      *time.Time   `json:"cancelledAt,omitempty"`
	Reason           string       `json:"reason,omitempty"`
}
