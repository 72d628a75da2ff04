package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/memory"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/observability"
	"github.com/boddenberg/plantao-presenca-go/internal/service"

	"go.uber.org/zap"
)

const testOrg = "org-1"

var brt = time.FixedZone("BRT", -3*60*60)

// --- Fakes ---

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) New(time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("rec-%03d", g.n), nil
}

type fixedCommute float64

func (f fixedCommute) EstimateKm(string, string) float64 { return float64(f) }

// failingStore fails every write after the snapshot is loaded.
type failingStore struct {
	*memory.Store
	err error
}

func (s *failingStore) SaveRecord(context.Context, string, *domain.AttendanceRecord) error {
	return s.err
}

func (s *failingStore) SaveCancellation(context.Context, string, *domain.CancellationEvent) error {
	return s.err
}

// --- Builders ---

// at parses "2006-01-02T15:04" in the test zone.
func at(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.ParseInLocation("2006-01-02T15:04", s, brt)
	if err != nil {
		t.Fatalf("bad test time %q: %v", s, err)
	}
	return v
}

func newTestLedger(t *testing.T, clock *fixedClock) *service.LedgerService {
	t.Helper()
	return service.NewLedgerService(memory.NewStore(testOrg), clock, &seqIDs{}, brt, observability.NewMetrics(), zap.NewNop())
}

var utiCenter = domain.GeoPoint{Lat: -23.5505, Lng: -46.6333}

func configureUTI(t *testing.T, svc *service.LedgerService) {
	t.Helper()
	radius := 100.0
	_, err := svc.UpsertGeofence(context.Background(), testOrg, domain.GeofenceInput{
		SectorID:     "uti",
		SectorName:   "UTI Adulto",
		Lat:          utiCenter.Lat,
		Lng:          utiCenter.Lng,
		RadiusMeters: &radius,
	})
	if err != nil {
		t.Fatalf("configure geofence: %v", err)
	}
}

func fixAt(p domain.GeoPoint, accuracy float64) domain.GeoFix {
	return domain.GeoFix{Lat: p.Lat, Lng: p.Lng, AccuracyMeters: accuracy, Source: domain.GeoSourceDevice}
}

func checkInReq(shiftID, profID string, fix domain.GeoFix) *domain.CheckInRequest {
	return &domain.CheckInRequest{
		ShiftID:      shiftID,
		Professional: domain.Professional{UserID: profID, Name: "Ana Souza", Specialty: "Enfermagem"},
		Sector:       domain.Sector{ID: "uti", Name: "UTI Adulto"},
		ShiftDate:    "2026-02-10",
		StartTime:    "07:00",
		EndTime:      "19:00",
		PatientLoad:  domain.PatientLoadHigh,
		Geo:          fix,
	}
}

func checkOutReq(shiftID, profID string, fix domain.GeoFix) *domain.CheckOutRequest {
	return &domain.CheckOutRequest{
		ShiftID:            shiftID,
		ProfessionalUserID: profID,
		Geo:                fix,
		StressSelfReport: domain.StressSelfReport{
			Level:        5,
			EnergyLevel:  1,
			SupportLevel: 1,
			Triggers:     []domain.StressTrigger{domain.TriggerSevereCases, domain.TriggerMissedBreak},
		},
	}
}

// completedRecord is a finished on-time day shift.
func completedRecord(t *testing.T, profID, shiftID, date string) domain.AttendanceRecord {
	t.Helper()
	start, end, err := service.ScheduleWindow(date, "07:00", "19:00", brt)
	if err != nil {
		t.Fatalf("schedule window: %v", err)
	}
	in, out := start, end
	return domain.AttendanceRecord{
		ID:                 "hist-" + shiftID,
		ShiftID:            shiftID,
		ProfessionalUserID: profID,
		ProfessionalName:   "Ana Souza",
		SectorID:           "uti",
		SectorName:         "UTI Adulto",
		ShiftDate:          date,
		StartTime:          "07:00",
		EndTime:            "19:00",
		ScheduledStartAt:   start,
		ScheduledEndAt:     end,
		Status:             domain.StatusCheckedOut,
		OnTime:             true,
		WorkedMinutes:      720,
		CheckInAt:          &in,
		CheckOutAt:         &out,
		CheckIn:            &domain.GeoSnapshot{DistanceMeters: 10, WithinGeofence: true},
		CheckOut:           &domain.GeoSnapshot{DistanceMeters: 12, WithinGeofence: true},
	}
}

// contextCheckingStore fails snapshot loads whose context is already done.
type contextCheckingStore struct {
	*memory.Store
}

func (s *contextCheckingStore) LoadSnapshot(ctx context.Context, orgID string) (*domain.LedgerSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Store.LoadSnapshot(ctx, orgID)
}
