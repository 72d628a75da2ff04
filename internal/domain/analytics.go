package domain

import "time"

// ============================================================
// Manager analytics snapshot
// ============================================================

// AttendanceManagerAnalytics is returned by GET /v1/orgs/{orgId}/analytics/manager.
// Rates are percentages in [0,100]; averages are rounded to one decimal.
type AttendanceManagerAnalytics struct {
	OrganizationID        string                     `json:"organizationId"`
	GeneratedAt           time.Time                  `json:"generatedAt"`
	Totals                AttendanceTotals           `json:"totals"`
	LateRanking           []LateRankingEntry         `json:"lateRanking"`
	StressRanking         []StressRankingEntry       `json:"stressRanking"`
	RiskDistribution      RiskDistribution           `json:"riskDistribution"`
	StressTimeline        []StressTimelineBucket     `json:"stressTimeline"`
	TopTriggers           []TriggerCount             `json:"topTriggers"`
	HighestRiskCheckouts  []HighRiskCheckout         `json:"highestRiskCheckouts"`
	InstitutionEvaluation InstitutionEvaluationStats `json:"institutionEvaluation"`
}

// AttendanceTotals holds the headline rates of the snapshot.
type AttendanceTotals struct {
	Records                    int     `json:"records"`
	Cancellations              int     `json:"cancellations"`
	CheckedIn                  int     `json:"checkedIn"`
	CheckedOut                 int     `json:"checkedOut"`
	Abandonments               int     `json:"abandonments"`
	LastMinuteCancellations    int     `json:"lastMinuteCancellations"`
	AttendanceRate             float64 `json:"attendanceRate"`
	CheckInRate                float64 `json:"checkInRate"`
	CheckoutRate               float64 `json:"checkoutRate"`
	OnTimeRate                 float64 `json:"onTimeRate"`
	AbandonmentRate            float64 `json:"abandonmentRate"`
	LastMinuteCancellationRate float64 `json:"lastMinuteCancellationRate"`
	AvgLateMinutes             float64 `json:"avgLateMinutes"`
	AvgOvertimeMinutes         float64 `json:"avgOvertimeMinutes"`
	AvgCheckInDistanceMeters   float64 `json:"avgCheckInDistanceMeters"`
	AvgStressScore             float64 `json:"avgStressScore"`
	AvgStressLevel             float64 `json:"avgStressLevel"`
	HighRiskRate               float64 `json:"highRiskRate"`
}

// LateRankingEntry ranks professionals by lateness.
type LateRankingEntry struct {
	ProfessionalUserID       string  `json:"professionalUserId"`
	ProfessionalName         string  `json:"professionalName"`
	Specialty                string  `json:"specialty,omitempty"`
	Records                  int     `json:"records"`
	LateCount                int     `json:"lateCount"`
	LateRate                 float64 `json:"lateRate"`
	AvgLateMinutes           float64 `json:"avgLateMinutes"`
	MaxLateMinutes           int     `json:"maxLateMinutes"`
	AvgCheckInDistanceMeters float64 `json:"avgCheckInDistanceMeters"`
}

// StressRankingEntry ranks professionals by stress.
type StressRankingEntry struct {
	ProfessionalUserID string          `json:"professionalUserId"`
	ProfessionalName   string          `json:"professionalName"`
	Specialty          string          `json:"specialty,omitempty"`
	Checkouts          int             `json:"checkouts"`
	AvgStressLevel     float64         `json:"avgStressLevel"`
	AvgStressScore     float64         `json:"avgStressScore"`
	HighRiskCount      int             `json:"highRiskCount"`
	CriticalCount      int             `json:"criticalCount"`
	TopTriggers        []StressTrigger `json:"topTriggers"`
}

// RiskDistribution counts completed check-outs by stress band.
type RiskDistribution struct {
	Baixo    int `json:"BAIXO"`
	Moderado int `json:"MODERADO"`
	Alto     int `json:"ALTO"`
	Critico  int `json:"CRITICO"`
}

// Add increments the counter for the given band.
func (d *RiskDistribution) Add(level RiskLevel) {
	switch level {
	case RiskLow:
		d.Baixo++
	case RiskModerate:
		d.Moderado++
	case RiskHigh:
		d.Alto++
	case RiskCritical:
		d.Critico++
	}
}

// StressTimelineBucket aggregates check-outs of one shift date.
type StressTimelineBucket struct {
	ShiftDate      string  `json:"shiftDate"`
	Checkouts      int     `json:"checkouts"`
	AvgStressScore float64 `json:"avgStressScore"`
	AvgStressLevel float64 `json:"avgStressLevel"`
	HighRiskCount  int     `json:"highRiskCount"`
}

// TriggerCount is a trigger with its frequency.
type TriggerCount struct {
	Trigger StressTrigger `json:"trigger"`
	Count   int           `json:"count"`
}

// HighRiskCheckout is one of the highest-scoring individual check-outs.
type HighRiskCheckout struct {
	ShiftID            string         `json:"shiftId"`
	ProfessionalUserID string         `json:"professionalUserId"`
	ProfessionalName   string         `json:"professionalName"`
	SectorName         string         `json:"sectorName"`
	ShiftDate          string         `json:"shiftDate"`
	CheckOutAt         time.Time      `json:"checkOutAt"`
	Score              int            `json:"score"`
	RiskLevel          RiskLevel      `json:"riskLevel"`
	DominantDrivers    []StressDriver `json:"dominantDrivers"`
}

// InstitutionEvaluationStats rolls up the institution evaluations.
type InstitutionEvaluationStats struct {
	Evaluations        int                   `json:"evaluations"`
	AvgOrganization    float64               `json:"avgOrganization"`
	AvgPatientVolume   float64               `json:"avgPatientVolume"`
	AvgSafety          float64               `json:"avgSafety"`
	AvgStructure       float64               `json:"avgStructure"`
	AvgPaymentOnTime   float64               `json:"avgPaymentOnTime"`
	AvgTeamEnvironment float64               `json:"avgTeamEnvironment"`
	OverallAverage     float64               `json:"overallAverage"`
	RecentNotes        []InstitutionEvalNote `json:"recentNotes"`
}

// InstitutionEvalNote is a free-text note left with an evaluation.
type InstitutionEvalNote struct {
	ShiftID          string    `json:"shiftId"`
	ProfessionalName string    `json:"professionalName"`
	SectorName       string    `json:"sectorName"`
	ShiftDate        string    `json:"shiftDate"`
	CheckOutAt       time.Time `json:"checkOutAt"`
	Average          float64   `json:"average"`
	Note             string    `json:"note"`
}
