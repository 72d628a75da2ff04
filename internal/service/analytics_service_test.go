package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/cache"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/observability"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/resilience"
	"github.com/boddenberg/plantao-presenca-go/internal/service"

	"go.uber.org/zap"
)

type mockSchedule struct {
	calls       atomic.Int32
	assignments []domain.ShiftAssignment
	err         error
}

func (m *mockSchedule) ListAssignments(context.Context, string, time.Time, time.Time) ([]domain.ShiftAssignment, error) {
	m.calls.Add(1)
	return m.assignments, m.err
}

type mockRoster struct {
	professionals []domain.Professional
	err           error
}

func (m *mockRoster) ListProfessionals(context.Context, string) ([]domain.Professional, error) {
	return m.professionals, m.err
}

func newTestAnalytics(t *testing.T, ledger *service.LedgerService, clock *fixedClock, schedule *mockSchedule, roster *mockRoster) *service.AnalyticsService {
	t.Helper()
	c := cache.New[any](time.Minute)
	t.Cleanup(c.Close)
	return service.NewAnalyticsService(service.AnalyticsDeps{
		Ledger:   ledger,
		Roster:   roster,
		Schedule: schedule,
		Commute:  fixedCommute(0),
		Cache:    c,
		Bulkhead: resilience.NewBulkhead(2),
		Clock:    clock,
		Metrics:  observability.NewMetrics(),
		Logger:   zap.NewNop(),
	})
}

func TestPredictiveRisk_CachedPerLedgerVersion(t *testing.T) {
	clock := &fixedClock{now: at(t, "2026-02-10T06:00")}
	ledger := newTestLedger(t, clock)
	schedule := &mockSchedule{assignments: []domain.ShiftAssignment{
		upcomingAssignment("shift-1", "prof-1", "2026-02-10", "07:00", "19:00"),
	}}
	svc := newTestAnalytics(t, ledger, clock, schedule, &mockRoster{})
	ctx := context.Background()

	first, err := svc.PredictiveRisk(ctx, testOrg, nil)
	if err != nil {
		t.Fatalf("predictive: %v", err)
	}
	if first.UpcomingShifts != 1 {
		t.Fatalf("expected 1 upcoming shift, got %d", first.UpcomingShifts)
	}
	second, err := svc.PredictiveRisk(ctx, testOrg, nil)
	if err != nil {
		t.Fatalf("predictive: %v", err)
	}
	if second != first || schedule.calls.Load() != 1 {
		t.Errorf("expected cached report, schedule called %d times", schedule.calls.Load())
	}

	// A ledger mutation bumps the version and invalidates the entry.
	configureUTI(t, ledger)
	if _, err := svc.PredictiveRisk(ctx, testOrg, nil); err != nil {
		t.Fatalf("predictive: %v", err)
	}
	if schedule.calls.Load() != 2 {
		t.Errorf("expected a recompute after mutation, schedule called %d times", schedule.calls.Load())
	}
}

func TestPredictiveRisk_ScheduleFailure(t *testing.T) {
	clock := &fixedClock{now: at(t, "2026-02-10T06:00")}
	boom := &domain.ErrExternalService{Service: "schedule-api", Err: errors.New("502")}
	svc := newTestAnalytics(t, newTestLedger(t, clock), clock, &mockSchedule{err: boom}, &mockRoster{})

	_, err := svc.PredictiveRisk(context.Background(), testOrg, nil)
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) || ext.Service != "schedule-api" {
		t.Fatalf("expected schedule ErrExternalService, got %v", err)
	}
}

func TestManagerAnalytics_RosterFailureDegrades(t *testing.T) {
	clock := &fixedClock{now: at(t, "2026-02-10T07:00")}
	ledger := newTestLedger(t, clock)
	configureUTI(t, ledger)
	if _, err := ledger.CheckIn(context.Background(), testOrg, checkInReq("shift-1", "prof-1", fixAt(utiCenter, 5))); err != nil {
		t.Fatalf("check-in: %v", err)
	}

	svc := newTestAnalytics(t, ledger, clock, &mockSchedule{}, &mockRoster{err: errors.New("roster down")})
	a, err := svc.ManagerAnalytics(context.Background(), testOrg, nil)
	if err != nil {
		t.Fatalf("expected roster failure to degrade, got %v", err)
	}
	if len(a.LateRanking) != 1 || a.LateRanking[0].ProfessionalName != "Ana Souza" {
		t.Errorf("expected record name fallback, got %+v", a.LateRanking)
	}
}

func TestManagerAnalytics_UnknownOrganization(t *testing.T) {
	clock := &fixedClock{now: at(t, "2026-02-10T07:00")}
	svc := newTestAnalytics(t, newTestLedger(t, clock), clock, &mockSchedule{}, &mockRoster{})

	_, err := svc.ManagerAnalytics(context.Background(), "org-missing", nil)
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPredictiveRiskFor_ValidatesAssignments(t *testing.T) {
	clock := &fixedClock{now: at(t, "2026-02-10T06:00")}
	svc := newTestAnalytics(t, newTestLedger(t, clock), clock, &mockSchedule{}, &mockRoster{})

	bad := upcomingAssignment("shift-1", "prof-1", "2026-02-10", "25:00", "19:00")
	_, err := svc.PredictiveRiskFor(context.Background(), testOrg, nil, []domain.ShiftAssignment{bad})
	assertValidation(t, err, "startTime")

	ok := upcomingAssignment("shift-1", "prof-1", "2026-02-10", "07:00", "19:00")
	report, err := svc.PredictiveRiskFor(context.Background(), testOrg, nil, []domain.ShiftAssignment{ok})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report.UpcomingShifts != 1 {
		t.Errorf("expected 1 scored shift, got %d", report.UpcomingShifts)
	}
}
