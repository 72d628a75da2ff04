package domain

import "time"

// ============================================================
// Predictive failure risk for upcoming shifts
// ============================================================

// PredictiveRiskReport is returned by /v1/orgs/{orgId}/analytics/predictive.
type PredictiveRiskReport struct {
	OrganizationID  string                    `json:"organizationId"`
	GeneratedAt     time.Time                 `json:"generatedAt"`
	UpcomingShifts  int                       `json:"upcomingShifts"`
	AvgRisk         float64                   `json:"avgRisk"`
	BandCounts      RiskDistribution          `json:"bandCounts"`
	Shifts          []ShiftRiskPrediction     `json:"shifts"`
	TopRiskShifts   []ShiftRiskPrediction     `json:"topRiskShifts"`
	ByProfessional  []ProfessionalRiskSummary `json:"byProfessional"`
	ModelDisclaimer string                    `json:"modelDisclaimer"`
}

// ShiftRiskPrediction is the heuristic risk of one upcoming assignment
// being missed or abandoned.
type ShiftRiskPrediction struct {
	ShiftID            string             `json:"shiftId"`
	ProfessionalUserID string             `json:"professionalUserId"`
	ProfessionalName   string             `json:"professionalName"`
	SectorName         string             `json:"sectorName"`
	ShiftDate          string             `json:"shiftDate"`
	StartTime          string             `json:"startTime"`
	EndTime            string             `json:"endTime"`
	ScheduledStartAt   time.Time          `json:"scheduledStartAt"`
	Risk               float64            `json:"risk"`
	Band               RiskLevel          `json:"band"`
	Factors            []string           `json:"factors"`
	Contributions      []RiskContribution `json:"contributions"`
	Signals            RiskSignals        `json:"signals"`
}

// RiskContribution is the points one named term added (or removed).
type RiskContribution struct {
	Factor string  `json:"factor"`
	Points float64 `json:"points"`
}

// RiskSignals are the historical inputs the risk was computed from.
type RiskSignals struct {
	HistoricalRecords        int     `json:"historicalRecords"`
	AbandonmentRatePct       float64 `json:"abandonmentRatePct"`
	NoCheckInRatePct         float64 `json:"noCheckInRatePct"`
	LateRatePct              float64 `json:"lateRatePct"`
	AvgLateMinutes           float64 `json:"avgLateMinutes"`
	LastMinuteCancellations  int     `json:"lastMinuteCancellations"`
	LastMinuteCancelRatePct  float64 `json:"lastMinuteCancelRatePct"`
	ShiftsTrailing14d        int     `json:"shiftsTrailing14d"`
	ShiftsTrailing7d         int     `json:"shiftsTrailing7d"`
	EstimatedCommuteKm       float64 `json:"estimatedCommuteKm"`
	NightShift               bool    `json:"nightShift"`
	AvgCheckInDistanceMeters float64 `json:"avgCheckInDistanceMeters"`
	OnTimeCheckIns           int     `json:"onTimeCheckIns"`
	InstitutionCompleted     int     `json:"institutionCompleted"`
}

// ProfessionalRiskSummary aggregates a professional's own upcoming shifts.
type ProfessionalRiskSummary struct {
	ProfessionalUserID string    `json:"professionalUserId"`
	ProfessionalName   string    `json:"professionalName"`
	UpcomingShifts     int       `json:"upcomingShifts"`
	AvgRisk            float64   `json:"avgRisk"`
	MaxRisk            float64   `json:"maxRisk"`
	MaxBand            RiskLevel `json:"maxBand"`
}

// PredictiveRequest is the body for POST /v1/orgs/{orgId}/analytics/predictive.
type PredictiveRequest struct {
	Assignments []ShiftAssignment `json:"assignments"`
}
