package service_test

import (
	"reflect"
	"testing"
	"testing/quick"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
	"github.com/boddenberg/plantao-presenca-go/internal/service"
)

func dayRecord(t *testing.T, lateMinutes int) *domain.AttendanceRecord {
	t.Helper()
	start, end, err := service.ScheduleWindow("2026-02-10", "07:00", "19:00", brt)
	if err != nil {
		t.Fatalf("schedule window: %v", err)
	}
	in := start.Add(time.Duration(lateMinutes) * time.Minute)
	return &domain.AttendanceRecord{
		ShiftID:            "shift-1",
		ProfessionalUserID: "prof-1",
		StartTime:          "07:00",
		EndTime:            "19:00",
		ScheduledStartAt:   start,
		ScheduledEndAt:     end,
		PatientLoad:        domain.PatientLoadHigh,
		LateMinutes:        lateMinutes,
		CheckInAt:          &in,
	}
}

func TestScoreStress_SaturatedScenario(t *testing.T) {
	rec := dayRecord(t, 20)
	report := domain.StressSelfReport{
		Level:        5,
		EnergyLevel:  1,
		SupportLevel: 1,
		Triggers:     []domain.StressTrigger{domain.TriggerSevereCases, domain.TriggerMissedBreak},
	}

	got := service.ScoreStress(rec, report, nil)

	want := domain.StressBreakdown{SelfReport: 82, Lateness: 4, Workload: 12, Triggers: 12, LowEnergy: 16, LowSupport: 12}
	if got.Breakdown != want {
		t.Errorf("breakdown = %+v, want %+v", got.Breakdown, want)
	}
	if got.Score != 100 {
		t.Errorf("expected score clamped to 100, got %d", got.Score)
	}
	if got.RiskLevel != domain.RiskCritical {
		t.Errorf("expected CRITICO, got %s", got.RiskLevel)
	}
	if !got.Flags.AtrasoRelevante || !got.Flags.ExposicaoCasosGraves || !got.Flags.RiscoCritico {
		t.Errorf("unexpected flags %+v", got.Flags)
	}
	if got.Flags.JanelaDescansoCurta || got.RestHoursSincePrevious != nil {
		t.Error("expected no rest window without history")
	}
	if got.RecoveryMinutesRecommended != 255 {
		t.Errorf("expected 255 recovery minutes, got %d", got.RecoveryMinutesRecommended)
	}

	var factors []string
	for _, d := range got.DominantDrivers {
		factors = append(factors, d.Factor)
	}
	wantFactors := []string{domain.FactorSelfReport, domain.FactorLowEnergy, domain.FactorWorkload, domain.FactorTriggers}
	if !reflect.DeepEqual(factors, wantFactors) {
		t.Errorf("dominant drivers = %v, want %v", factors, wantFactors)
	}
}

func TestStressRiskLevel_Bands(t *testing.T) {
	tests := []struct {
		score int
		want  domain.RiskLevel
	}{
		{0, domain.RiskLow},
		{35, domain.RiskLow},
		{36, domain.RiskModerate},
		{57, domain.RiskModerate},
		{58, domain.RiskHigh},
		{74, domain.RiskHigh},
		{75, domain.RiskCritical},
		{100, domain.RiskCritical},
	}
	for _, tt := range tests {
		if got := service.StressRiskLevel(tt.score); got != tt.want {
			t.Errorf("StressRiskLevel(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestScoreStress_ShortRestFromHistory(t *testing.T) {
	rec := dayRecord(t, 0)
	prevOut := rec.CheckInAt.Add(-6 * time.Hour)
	history := []domain.AttendanceRecord{
		{ShiftID: "shift-0", ProfessionalUserID: "prof-1", CheckOutAt: &prevOut},
		// Another professional never counts.
		{ShiftID: "shift-0", ProfessionalUserID: "prof-2", CheckOutAt: ptrTime(rec.CheckInAt.Add(-time.Hour))},
	}
	report := domain.StressSelfReport{Level: 1, EnergyLevel: 5, SupportLevel: 5}

	got := service.ScoreStress(rec, report, history)
	if got.Breakdown.ShortRest != 12 {
		t.Errorf("expected 12 short-rest points for 6h rest, got %d", got.Breakdown.ShortRest)
	}
	if got.RestHoursSincePrevious == nil || *got.RestHoursSincePrevious != 6 {
		t.Errorf("expected 6h rest, got %v", got.RestHoursSincePrevious)
	}
	if !got.Flags.JanelaDescansoCurta {
		t.Error("expected short rest flag")
	}
}

func TestScoreStress_NightShiftPoints(t *testing.T) {
	rec := dayRecord(t, 0)
	rec.StartTime, rec.EndTime = "19:00", "07:00"
	got := service.ScoreStress(rec, domain.StressSelfReport{Level: 1, EnergyLevel: 5, SupportLevel: 5}, nil)
	if got.Breakdown.NightShift != 7 {
		t.Errorf("expected 7 night shift points, got %d", got.Breakdown.NightShift)
	}
}

func TestScoreStress_LatenessMonotonicAndCapped(t *testing.T) {
	report := domain.StressSelfReport{Level: 3, EnergyLevel: 3, SupportLevel: 3}
	f := func(a, b uint16) bool {
		lo, hi := int(a%600), int(b%600)
		if lo > hi {
			lo, hi = hi, lo
		}
		sLo := service.ScoreStress(dayRecord(t, lo), report, nil)
		sHi := service.ScoreStress(dayRecord(t, hi), report, nil)
		return sLo.Breakdown.Lateness <= sHi.Breakdown.Lateness &&
			sLo.Score <= sHi.Score &&
			sHi.Breakdown.Lateness <= 20
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestScoreStress_Deterministic(t *testing.T) {
	f := func(level, energy, support uint8, late uint16) bool {
		report := domain.StressSelfReport{
			Level:        int(level%5) + 1,
			EnergyLevel:  int(energy%5) + 1,
			SupportLevel: int(support%5) + 1,
			Triggers:     []domain.StressTrigger{domain.TriggerSleep},
		}
		rec := dayRecord(t, int(late%300))
		a := service.ScoreStress(rec, report, nil)
		b := service.ScoreStress(rec, report, nil)
		return reflect.DeepEqual(a, b) && a.Score >= 0 && a.Score <= 100
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
