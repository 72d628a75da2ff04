package service

import (
	"math"
	"sort"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
)

var selfReportPoints = map[int]int{1: 12, 2: 28, 3: 46, 4: 64, 5: 82}

var workloadPoints = map[domain.PatientLoad]int{
	domain.PatientLoadHigh:     12,
	domain.PatientLoadModerate: 6,
	domain.PatientLoadLow:      2,
}

const (
	latenessFactor   = 0.22
	latenessCap      = 20
	overtimeFactor   = 0.08
	overtimeCap      = 18
	nightShiftPoints = 7
	triggersCap      = 18
	lowEnergyStep    = 4
	lowEnergyCap     = 16
	lowSupportStep   = 3
	lowSupportCap    = 12
	maxDrivers       = 4

	minRecoveryMinutes = 45
	maxRecoveryMinutes = 720
)

// ScoreStress turns a check-out into a 0–100 stress score with its band,
// breakdown, flags, recovery recommendation and dominant drivers.
//
// It is pure: history is only read to find the professional's previous
// check-out, and identical inputs always yield identical output.
func ScoreStress(record *domain.AttendanceRecord, report domain.StressSelfReport, history []domain.AttendanceRecord) domain.StressAnalytics {
	restHours, hasRest := restHoursBefore(record, history)

	b := domain.StressBreakdown{
		SelfReport: selfReportPoints[report.Level],
		Lateness:   clampInt(roundInt(float64(record.LateMinutes)*latenessFactor), 0, latenessCap),
		Overtime:   clampInt(roundInt(float64(record.OvertimeMinutes)*overtimeFactor), 0, overtimeCap),
		Workload:   workloadPoints[record.PatientLoad],
		Triggers:   clampInt(triggerPoints(report.Triggers), 0, triggersCap),
		LowEnergy:  clampInt((5-report.EnergyLevel)*lowEnergyStep, 0, lowEnergyCap),
		LowSupport: clampInt((5-report.SupportLevel)*lowSupportStep, 0, lowSupportCap),
	}
	if IsNightShift(record.StartTime, record.EndTime) {
		b.NightShift = nightShiftPoints
	}
	if hasRest {
		b.ShortRest = shortRestPoints(restHours)
	}

	score := clampInt(b.Total(), 0, 100)
	level := StressRiskLevel(score)

	analytics := domain.StressAnalytics{
		Score:     score,
		RiskLevel: level,
		Breakdown: b,
		Flags: domain.StressFlags{
			AtrasoRelevante:      record.LateMinutes >= 15,
			HoraExtraAlta:        record.OvertimeMinutes >= 60,
			AutopercepcaoAlta:    report.Level >= 4,
			BaixoSuporte:         report.SupportLevel <= 2,
			BaixaEnergia:         report.EnergyLevel <= 2,
			ExposicaoCasosGraves: hasTrigger(report.Triggers, domain.TriggerSevereCases),
			JanelaDescansoCurta:  hasRest && restHours < 12,
			RiscoCritico:         level == domain.RiskCritical,
		},
		RecoveryMinutesRecommended: clampInt(
			roundInt(45+float64(score)*2.1+float64(record.OvertimeMinutes)*0.25),
			minRecoveryMinutes, maxRecoveryMinutes,
		),
		DominantDrivers: dominantDrivers(b),
	}
	if hasRest {
		h := math.Round(restHours*10) / 10
		analytics.RestHoursSincePrevious = &h
	}
	return analytics
}

// StressRiskLevel bands a stress score; each band includes its lower bound.
func StressRiskLevel(score int) domain.RiskLevel {
	switch {
	case score >= 75:
		return domain.RiskCritical
	case score >= 58:
		return domain.RiskHigh
	case score >= 36:
		return domain.RiskModerate
	}
	return domain.RiskLow
}

func triggerPoints(triggers []domain.StressTrigger) int {
	total := 0
	for _, t := range triggers {
		total += domain.TriggerWeights[t]
	}
	return total
}

func hasTrigger(triggers []domain.StressTrigger, want domain.StressTrigger) bool {
	for _, t := range triggers {
		if t == want {
			return true
		}
	}
	return false
}

func shortRestPoints(hours float64) int {
	switch {
	case hours < 8:
		return 12
	case hours < 12:
		return 7
	case hours < 16:
		return 3
	}
	return 0
}

// restHoursBefore finds the professional's most recent check-out at or
// before this record's check-in, on any other shift.
func restHoursBefore(record *domain.AttendanceRecord, history []domain.AttendanceRecord) (float64, bool) {
	if record.CheckInAt == nil {
		return 0, false
	}
	checkIn := *record.CheckInAt
	key := record.Key()

	var last time.Time
	found := false
	for i := range history {
		h := &history[i]
		if h.ProfessionalUserID != record.ProfessionalUserID || h.Key() == key || h.CheckOutAt == nil {
			continue
		}
		if h.CheckOutAt.After(checkIn) {
			continue
		}
		if !found || h.CheckOutAt.After(last) {
			last = *h.CheckOutAt
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return checkIn.Sub(last).Hours(), true
}

// dominantDrivers keeps the top non-zero sub-scores, highest first; ties
// keep breakdown order.
func dominantDrivers(b domain.StressBreakdown) []domain.StressDriver {
	drivers := make([]domain.StressDriver, 0, maxDrivers)
	for _, d := range b.Drivers() {
		if d.Points > 0 {
			drivers = append(drivers, d)
		}
	}
	sort.SliceStable(drivers, func(i, j int) bool { return drivers[i].Points > drivers[j].Points })
	if len(drivers) > maxDrivers {
		drivers = drivers[:maxDrivers]
	}
	return drivers
}

func roundInt(v float64) int {
	return int(math.Round(v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
