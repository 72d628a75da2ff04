package service_test

import (
	"fmt"
	"testing"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
	"github.com/boddenberg/plantao-presenca-go/internal/service"
)

func upcomingAssignment(shiftID, profID, date, start, end string) domain.ShiftAssignment {
	return domain.ShiftAssignment{
		ShiftID:      shiftID,
		Professional: domain.Professional{UserID: profID, Name: "Ana Souza"},
		SectorID:     "uti",
		SectorName:   "UTI Adulto",
		ShiftDate:    date,
		StartTime:    start,
		EndTime:      end,
	}
}

func TestPredictRisk_NoHistoryIsBaseOnly(t *testing.T) {
	report := service.PredictRisk(service.PredictiveInput{
		OrganizationID: testOrg,
		Upcoming:       []domain.ShiftAssignment{upcomingAssignment("next", "prof-new", "2026-03-20", "07:00", "19:00")},
		Now:            at(t, "2026-03-19T12:00"),
		Location:       brt,
		Commute:        fixedCommute(0),
	})

	if report.UpcomingShifts != 1 {
		t.Fatalf("expected 1 upcoming shift, got %d", report.UpcomingShifts)
	}
	p := report.Shifts[0]
	if p.Risk != 6 || p.Band != domain.RiskLow {
		t.Errorf("expected base risk 6 BAIXO, got %v %s", p.Risk, p.Band)
	}
	if len(p.Contributions) != 1 || p.Contributions[0].Factor != service.TermBase {
		t.Errorf("expected a single base contribution, got %+v", p.Contributions)
	}
	if len(p.Factors) != 1 || p.Factors[0] != "stable recent history" {
		t.Errorf("unexpected factors %v", p.Factors)
	}
	if report.ModelDisclaimer != service.ModelDisclaimer {
		t.Error("expected the model disclaimer on every report")
	}
}

func TestPredictRisk_ReliableHistoryIsLow(t *testing.T) {
	var records []domain.AttendanceRecord
	for i := 0; i < 8; i++ {
		records = append(records, completedRecord(t, "prof-1", fmt.Sprintf("old-%d", i), fmt.Sprintf("2026-02-%02d", 1+i)))
	}

	report := service.PredictRisk(service.PredictiveInput{
		OrganizationID: testOrg,
		Records:        records,
		Upcoming:       []domain.ShiftAssignment{upcomingAssignment("next", "prof-1", "2026-03-20", "07:00", "19:00")},
		Now:            at(t, "2026-03-19T12:00"),
		Location:       brt,
		Commute:        fixedCommute(18),
	})

	p := report.Shifts[0]
	// 6 base + 18*0.28 commute - 4 on-time - 3 completed.
	if p.Risk != 4 || p.Band != domain.RiskLow {
		t.Errorf("expected risk 4 BAIXO, got %v %s", p.Risk, p.Band)
	}
	if p.Signals.OnTimeCheckIns != 8 || p.Signals.InstitutionCompleted != 8 || p.Signals.ShiftsTrailing14d != 0 {
		t.Errorf("unexpected signals %+v", p.Signals)
	}
	if len(p.Factors) != 1 || p.Factors[0] != "estimated commute: 18.0 km" {
		t.Errorf("unexpected factors %v", p.Factors)
	}
}

func TestPredictRisk_UnreliableHistoryRanksFirst(t *testing.T) {
	var records []domain.AttendanceRecord
	for i := 0; i < 4; i++ {
		r := completedRecord(t, "prof-bad", fmt.Sprintf("bad-%d", i), fmt.Sprintf("2026-03-%02d", 10+i))
		r.OnTime = false
		r.LateMinutes = 30
		r.EarlyCheckoutMinutes = 60
		records = append(records, r)
	}

	report := service.PredictRisk(service.PredictiveInput{
		OrganizationID: testOrg,
		Records:        records,
		Upcoming: []domain.ShiftAssignment{
			upcomingAssignment("a", "prof-ok", "2026-03-20", "07:00", "19:00"),
			upcomingAssignment("b", "prof-bad", "2026-03-20", "19:00", "07:00"),
		},
		Now:      at(t, "2026-03-19T12:00"),
		Location: brt,
		Commute:  fixedCommute(0),
	})

	if len(report.TopRiskShifts) != 2 || report.TopRiskShifts[0].ShiftID != "b" {
		t.Fatalf("expected the unreliable shift first, got %+v", report.TopRiskShifts)
	}
	bad := report.TopRiskShifts[0]
	if bad.Band != domain.RiskCritical {
		t.Errorf("expected CRITICO, got %v %s", bad.Risk, bad.Band)
	}
	if bad.Risk > 92 {
		t.Errorf("expected risk clamped to 92, got %v", bad.Risk)
	}
	if len(bad.Factors) > 4 {
		t.Errorf("expected at most 4 factors, got %v", bad.Factors)
	}
	if len(report.ByProfessional) != 2 || report.ByProfessional[0].ProfessionalUserID != "prof-bad" {
		t.Errorf("unexpected per-professional summary %+v", report.ByProfessional)
	}
}

func TestPredictRisk_SkipsPastAndInvalid(t *testing.T) {
	report := service.PredictRisk(service.PredictiveInput{
		OrganizationID: testOrg,
		Upcoming: []domain.ShiftAssignment{
			upcomingAssignment("past", "prof-1", "2026-03-18", "07:00", "19:00"),
			upcomingAssignment("broken", "prof-1", "2026-03-20", "7am", "19:00"),
			upcomingAssignment("ok", "prof-1", "2026-03-20", "07:00", "19:00"),
		},
		Now:      at(t, "2026-03-19T12:00"),
		Location: brt,
		Commute:  fixedCommute(0),
	})
	if report.UpcomingShifts != 1 || report.Shifts[0].ShiftID != "ok" {
		t.Errorf("expected only the valid future shift, got %+v", report.Shifts)
	}
}

func TestPredictiveRiskBand(t *testing.T) {
	tests := []struct {
		risk float64
		want domain.RiskLevel
	}{
		{3, domain.RiskLow},
		{11.9, domain.RiskLow},
		{12, domain.RiskModerate},
		{21.9, domain.RiskModerate},
		{22, domain.RiskHigh},
		{34.9, domain.RiskHigh},
		{35, domain.RiskCritical},
	}
	for _, tt := range tests {
		if got := service.PredictiveRiskBand(tt.risk); got != tt.want {
			t.Errorf("PredictiveRiskBand(%v) = %s, want %s", tt.risk, got, tt.want)
		}
	}
}

func TestHashCommuteEstimator_StableAndBounded(t *testing.T) {
	est := service.HashCommuteEstimator{}
	a := est.EstimateKm("prof-1", "UTI Adulto")
	if b := est.EstimateKm("prof-1", " uti adulto"); a != b {
		t.Errorf("expected normalized sector names to match: %v vs %v", a, b)
	}
	if a < 2 || a > 18 {
		t.Errorf("expected value in [2,18], got %v", a)
	}
}

func TestPredictRisk_CancellationSignals(t *testing.T) {
	attended := completedRecord(t, "prof-1", "old-1", "2026-02-10")

	seeded := completedRecord(t, "prof-1", "old-2", "2026-03-01")
	seeded.Status = domain.StatusPending
	seeded.CheckInAt, seeded.CheckOutAt, seeded.CheckIn, seeded.CheckOut = nil, nil, nil, nil

	cancellations := []domain.CancellationEvent{
		{
			ShiftID:            "old-2",
			ProfessionalUserID: "prof-1",
			ScheduledStartAt:   at(t, "2026-03-01T07:00"),
			CancelledAt:        at(t, "2026-03-01T03:00"),
		},
		// Made after the evaluation instant.
		{
			ShiftID:            "later",
			ProfessionalUserID: "prof-1",
			ScheduledStartAt:   at(t, "2026-03-21T07:00"),
			CancelledAt:        at(t, "2026-03-21T03:00"),
		},
	}

	report := service.PredictRisk(service.PredictiveInput{
		OrganizationID: testOrg,
		Records:        []domain.AttendanceRecord{attended, seeded},
		Cancellations:  cancellations,
		Upcoming:       []domain.ShiftAssignment{upcomingAssignment("next", "prof-1", "2026-03-20", "07:00", "19:00")},
		Now:            at(t, "2026-03-19T12:00"),
		Location:       brt,
		Commute:        fixedCommute(0),
	})

	s := report.Shifts[0].Signals
	if s.HistoricalRecords != 1 || s.NoCheckInRatePct != 0 {
		t.Errorf("expected the cancelled seed to be left out of history, got %+v", s)
	}
	if s.LastMinuteCancellations != 1 || s.LastMinuteCancelRatePct != 50 {
		t.Errorf("expected one past last-minute cancellation at 50%%, got %+v", s)
	}
}
