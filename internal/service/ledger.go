package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/observability"
	"github.com/boddenberg/plantao-presenca-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ledgerTracer = otel.Tracer("service/ledger")

// LedgerService owns the attendance state machine of every organization.
// Writes to one (shift, professional) key are serialized; everything else
// runs concurrently.
type LedgerService struct {
	store   port.LedgerStore
	clock   port.Clock
	ids     port.IDGenerator
	loc     *time.Location
	metrics *observability.Metrics
	logger  *zap.Logger

	mu    sync.RWMutex
	orgs  map[string]*orgLedger
	loads singleflight.Group
}

// NewLedgerService creates the ledger with all dependencies injected.
func NewLedgerService(
	store port.LedgerStore,
	clock port.Clock,
	ids port.IDGenerator,
	loc *time.Location,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *LedgerService {
	if loc == nil {
		loc = time.UTC
	}
	return &LedgerService{
		store:   store,
		clock:   clock,
		ids:     ids,
		loc:     loc,
		metrics: metrics,
		logger:  logger,
		orgs:    make(map[string]*orgLedger),
	}
}

// Location is the time zone shift dates and times are interpreted in.
func (s *LedgerService) Location() *time.Location { return s.loc }

// org returns the loaded ledger of an organization, loading its snapshot
// from the store on first use.
func (s *LedgerService) org(ctx context.Context, orgID string) (*orgLedger, error) {
	if strings.TrimSpace(orgID) == "" {
		return nil, &domain.ErrValidation{Field: "orgId", Message: "required"}
	}

	s.mu.RLock()
	o, ok := s.orgs[orgID]
	s.mu.RUnlock()
	if ok {
		return o, nil
	}

	v, err, _ := s.loads.Do(orgID, func() (any, error) {
		s.mu.RLock()
		existing, ok := s.orgs[orgID]
		s.mu.RUnlock()
		if ok {
			return existing, nil
		}

		// Shared by every caller waiting on this key, so one caller
		// going away must not fail the others.
		snap, err := s.store.LoadSnapshot(context.WithoutCancel(ctx), orgID)
		if err != nil {
			return nil, err
		}
		loaded := newOrgLedger(snap)

		s.mu.Lock()
		s.orgs[orgID] = loaded
		s.mu.Unlock()

		s.logger.Info("organization ledger loaded",
			zap.String("organization_id", orgID),
			zap.Int("geofences", len(snap.Geofences)),
			zap.Int("records", len(snap.Records)),
			zap.Int("cancellations", len(snap.Cancellations)),
		)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*orgLedger), nil
}

// ============================================================
// Geofences
// ============================================================

// UpsertGeofence validates and stores (or replaces) a sector's geofence.
func (s *LedgerService) UpsertGeofence(ctx context.Context, orgID string, in domain.GeofenceInput) (*domain.Geofence, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.UpsertGeofence")
	defer span.End()
	span.SetAttributes(attribute.String("organization.id", orgID), attribute.String("sector.id", in.SectorID))

	o, err := s.org(ctx, orgID)
	if err != nil {
		return nil, err
	}

	g, err := BuildGeofence(in, s.clock.Now())
	if err != nil {
		return nil, err
	}

	unlock := o.locks.Lock("geofence::" + g.SectorID)
	defer unlock()

	if err := s.store.SaveGeofence(ctx, orgID, &g); err != nil {
		return nil, fmt.Errorf("save geofence: %w", err)
	}
	o.geofences.Put(g)
	o.version.Add(1)

	s.logger.Info("geofence configured",
		zap.String("organization_id", orgID),
		zap.String("sector_id", g.SectorID),
		zap.Float64("lat", g.Lat),
		zap.Float64("lng", g.Lng),
		zap.Float64("radius_m", g.RadiusMeters),
	)
	return &g, nil
}

// ResolveGeofence returns the sector's configured geofence or its fallback.
func (s *LedgerService) ResolveGeofence(ctx context.Context, orgID, sectorID, sectorName string) (*domain.Geofence, error) {
	o, err := s.org(ctx, orgID)
	if err != nil {
		return nil, err
	}
	g := o.geofences.Resolve(sectorKey(sectorID, sectorName), sectorName)
	return &g, nil
}

// ListGeofences returns the configured geofences of an organization.
func (s *LedgerService) ListGeofences(ctx context.Context, orgID string) ([]domain.Geofence, error) {
	o, err := s.org(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return o.geofences.List(), nil
}

// ============================================================
// Check-in / Check-out
// ============================================================

// CheckIn validates the fix against the sector geofence and opens the
// attendance record of (shift, professional).
func (s *LedgerService) CheckIn(ctx context.Context, orgID string, req *domain.CheckInRequest) (*domain.AttendanceRecord, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.CheckIn")
	defer span.End()
	span.SetAttributes(
		attribute.String("organization.id", orgID),
		attribute.String("shift.id", req.ShiftID),
		attribute.String("professional.id", req.Professional.UserID),
	)

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("check_in", time.Since(start)) }()

	if err := validateCheckIn(req); err != nil {
		s.metrics.IncrCheckIn("invalid")
		return nil, err
	}
	scheduledStart, scheduledEnd, err := ScheduleWindow(req.ShiftDate, req.StartTime, req.EndTime, s.loc)
	if err != nil {
		s.metrics.IncrCheckIn("invalid")
		return nil, err
	}

	o, err := s.org(ctx, orgID)
	if err != nil {
		return nil, err
	}

	sectorID := sectorKey(req.Sector.ID, req.Sector.Name)
	key := domain.RecordKey{ShiftID: req.ShiftID, ProfessionalUserID: req.Professional.UserID}

	unlock := o.locks.Lock(key.String())
	defer unlock()

	fence := o.geofences.Resolve(sectorID, req.Sector.Name)
	snap := ValidateFix(fence, req.Geo)
	if !snap.WithinGeofence {
		s.metrics.IncrCheckIn("out_of_geofence")
		s.metrics.IncrGeofenceRejection("check_in")
		s.logger.Warn("check-in outside geofence",
			zap.String("organization_id", orgID),
			zap.String("shift_id", req.ShiftID),
			zap.String("professional_id", req.Professional.UserID),
			zap.String("geofence", fence.Label),
			zap.Float64("distance_m", snap.DistanceMeters),
			zap.Float64("tolerance_m", Tolerance(fence, req.Geo.AccuracyMeters)),
		)
		return nil, outOfGeofence("check_in", fence, req.Geo, snap)
	}

	existing := o.get(key)
	if existing != nil && existing.Status != domain.StatusPending {
		s.metrics.IncrCheckIn("conflict")
		reason := domain.ReasonAlreadyCheckedIn
		if existing.Status == domain.StatusCheckedOut {
			reason = domain.ReasonAlreadyCheckedOut
		}
		return nil, &domain.ErrStateConflict{
			Reason:             reason,
			ShiftID:            req.ShiftID,
			ProfessionalUserID: req.Professional.UserID,
			Status:             existing.Status,
		}
	}
	if _, cancelled := o.findCancellation(key); cancelled {
		s.metrics.IncrCheckIn("conflict")
		return nil, &domain.ErrStateConflict{
			Reason:             domain.ReasonCancelled,
			ShiftID:            req.ShiftID,
			ProfessionalUserID: req.Professional.UserID,
			Status:             domain.StatusPending,
		}
	}

	now := s.clock.Now()
	lateMinutes := max(0, minutesBetween(scheduledStart, now))

	rec := existing
	if rec == nil {
		id, err := s.ids.New(now)
		if err != nil {
			return nil, fmt.Errorf("generate record id: %w", err)
		}
		rec = &domain.AttendanceRecord{
			ID:                 id,
			ShiftID:            req.ShiftID,
			ProfessionalUserID: req.Professional.UserID,
			CreatedAt:          now,
		}
	}
	rec.ProfessionalName = req.Professional.Name
	rec.Specialty = req.Professional.Specialty
	rec.SectorID = sectorID
	rec.SectorName = req.Sector.Name
	rec.ShiftDate = req.ShiftDate
	rec.StartTime = req.StartTime
	rec.EndTime = req.EndTime
	rec.PatientLoad = req.PatientLoad
	rec.ScheduledStartAt = scheduledStart
	rec.ScheduledEndAt = scheduledEnd
	rec.Status = domain.StatusCheckedIn
	rec.LateMinutes = lateMinutes
	rec.OnTime = lateMinutes <= domain.OnTimeToleranceMinutes
	rec.CheckInAt = &now
	rec.CheckIn = &snap
	rec.UpdatedAt = now

	if err := s.store.SaveRecord(ctx, orgID, rec); err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}
	o.put(rec)

	s.metrics.IncrCheckIn("accepted")
	s.logger.Info("check-in accepted",
		zap.String("organization_id", orgID),
		zap.String("shift_id", rec.ShiftID),
		zap.String("professional_id", rec.ProfessionalUserID),
		zap.Int("late_minutes", rec.LateMinutes),
		zap.Float64("distance_m", snap.DistanceMeters),
		zap.String("source", string(snap.Source)),
	)
	return rec.Clone(), nil
}

// CheckOut validates the fix again, closes the record, and scores the
// shift's stress from the self-report and the professional's history.
func (s *LedgerService) CheckOut(ctx context.Context, orgID string, req *domain.CheckOutRequest) (*domain.AttendanceRecord, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.CheckOut")
	defer span.End()
	span.SetAttributes(
		attribute.String("organization.id", orgID),
		attribute.String("shift.id", req.ShiftID),
		attribute.String("professional.id", req.ProfessionalUserID),
	)

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("check_out", time.Since(start)) }()

	if err := required("shiftId", req.ShiftID); err != nil {
		return nil, err
	}
	if err := required("professionalUserId", req.ProfessionalUserID); err != nil {
		return nil, err
	}
	if err := validateFix(req.Geo); err != nil {
		s.metrics.IncrCheckOut("invalid")
		return nil, err
	}

	o, err := s.org(ctx, orgID)
	if err != nil {
		return nil, err
	}

	key := domain.RecordKey{ShiftID: req.ShiftID, ProfessionalUserID: req.ProfessionalUserID}
	unlock := o.locks.Lock(key.String())
	defer unlock()

	rec := o.get(key)
	switch {
	case rec == nil || rec.Status == domain.StatusPending:
		s.metrics.IncrCheckOut("conflict")
		status := domain.StatusPending
		if rec != nil {
			status = rec.Status
		}
		return nil, &domain.ErrStateConflict{
			Reason:             domain.ReasonNoCheckIn,
			ShiftID:            req.ShiftID,
			ProfessionalUserID: req.ProfessionalUserID,
			Status:             status,
		}
	case rec.Status == domain.StatusCheckedOut:
		s.metrics.IncrCheckOut("conflict")
		return nil, &domain.ErrStateConflict{
			Reason:             domain.ReasonAlreadyCheckedOut,
			ShiftID:            req.ShiftID,
			ProfessionalUserID: req.ProfessionalUserID,
			Status:             rec.Status,
		}
	}

	fence := o.geofences.Resolve(rec.SectorID, rec.SectorName)
	snap := ValidateFix(fence, req.Geo)
	if !snap.WithinGeofence {
		s.metrics.IncrCheckOut("out_of_geofence")
		s.metrics.IncrGeofenceRejection("check_out")
		s.logger.Warn("check-out outside geofence",
			zap.String("organization_id", orgID),
			zap.String("shift_id", req.ShiftID),
			zap.String("professional_id", req.ProfessionalUserID),
			zap.String("geofence", fence.Label),
			zap.Float64("distance_m", snap.DistanceMeters),
		)
		return nil, outOfGeofence("check_out", fence, req.Geo, snap)
	}

	now := s.clock.Now()
	rec.OvertimeMinutes = max(0, minutesBetween(rec.ScheduledEndAt, now))
	rec.EarlyCheckoutMinutes = max(0, minutesBetween(now, rec.ScheduledEndAt))
	rec.WorkedMinutes = minutesBetween(*rec.CheckInAt, now)

	report, err := normalizeSelfReport(req.StressSelfReport)
	if err != nil {
		s.metrics.IncrCheckOut("invalid")
		return nil, err
	}
	evaluation, err := normalizeEvaluation(req.InstitutionEvaluation)
	if err != nil {
		s.metrics.IncrCheckOut("invalid")
		return nil, err
	}

	analytics := ScoreStress(rec, report, o.recordList())

	rec.Status = domain.StatusCheckedOut
	rec.CheckOutAt = &now
	rec.CheckOut = &snap
	rec.StressSelfReport = &report
	rec.StressAnalytics = &analytics
	rec.InstitutionEvaluation = evaluation
	rec.UpdatedAt = now

	if err := s.store.SaveRecord(ctx, orgID, rec); err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}
	o.put(rec)

	s.metrics.IncrCheckOut("accepted")
	s.metrics.ObserveStress(analytics.Score, analytics.RiskLevel)
	s.logger.Info("check-out accepted",
		zap.String("organization_id", orgID),
		zap.String("shift_id", rec.ShiftID),
		zap.String("professional_id", rec.ProfessionalUserID),
		zap.Int("worked_minutes", rec.WorkedMinutes),
		zap.Int("stress_score", analytics.Score),
		zap.String("risk_level", string(analytics.RiskLevel)),
	)
	return rec.Clone(), nil
}

// SeedPending registers PENDENTE records for scheduled assignments.
// Keys that already exist are left untouched.
func (s *LedgerService) SeedPending(ctx context.Context, orgID string, assignments []domain.ShiftAssignment) (*domain.SeedPendingResponse, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.SeedPending")
	defer span.End()

	o, err := s.org(ctx, orgID)
	if err != nil {
		return nil, err
	}

	resp := &domain.SeedPendingResponse{}
	for i, a := range assignments {
		if err := validateAssignment(a); err != nil {
			return resp, fmt.Errorf("assignment %d: %w", i, err)
		}
		startAt, endAt, err := ScheduleWindow(a.ShiftDate, a.StartTime, a.EndTime, s.loc)
		if err != nil {
			return resp, fmt.Errorf("assignment %d: %w", i, err)
		}

		created, err := s.seedOne(ctx, o, a, startAt, endAt)
		if err != nil {
			return resp, err
		}
		if created {
			resp.Created++
		} else {
			resp.Skipped++
		}
	}

	s.logger.Info("pending records seeded",
		zap.String("organization_id", orgID),
		zap.Int("created", resp.Created),
		zap.Int("skipped", resp.Skipped),
	)
	return resp, nil
}

func (s *LedgerService) seedOne(ctx context.Context, o *orgLedger, a domain.ShiftAssignment, startAt, endAt time.Time) (bool, error) {
	key := domain.RecordKey{ShiftID: a.ShiftID, ProfessionalUserID: a.Professional.UserID}
	unlock := o.locks.Lock(key.String())
	defer unlock()

	if o.get(key) != nil {
		return false, nil
	}
	if _, cancelled := o.findCancellation(key); cancelled {
		return false, nil
	}

	now := s.clock.Now()
	id, err := s.ids.New(now)
	if err != nil {
		return false, fmt.Errorf("generate record id: %w", err)
	}
	rec := &domain.AttendanceRecord{
		ID:                 id,
		ShiftID:            a.ShiftID,
		ProfessionalUserID: a.Professional.UserID,
		ProfessionalName:   a.Professional.Name,
		Specialty:          a.Professional.Specialty,
		SectorID:           sectorKey(a.SectorID, a.SectorName),
		SectorName:         a.SectorName,
		ShiftDate:          a.ShiftDate,
		StartTime:          a.StartTime,
		EndTime:            a.EndTime,
		PatientLoad:        a.PatientLoad,
		ScheduledStartAt:   startAt,
		ScheduledEndAt:     endAt,
		Status:             domain.StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.SaveRecord(ctx, o.id, rec); err != nil {
		return false, fmt.Errorf("save record: %w", err)
	}
	o.put(rec)
	return true, nil
}

// ============================================================
// Cancellations
// ============================================================

// RecordCancellation stores a shift called off before check-in. A repeated
// cancellation of the same key returns the original event.
func (s *LedgerService) RecordCancellation(ctx context.Context, orgID string, req *domain.CancellationRequest) (*domain.CancellationEvent, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.RecordCancellation")
	defer span.End()

	if err := required("shiftId", req.ShiftID); err != nil {
		return nil, err
	}
	if err := required("professional.userId", req.Professional.UserID); err != nil {
		return nil, err
	}
	if req.ScheduledStartAt.IsZero() {
		return nil, &domain.ErrValidation{Field: "scheduledStartAt", Message: "required"}
	}

	o, err := s.org(ctx, orgID)
	if err != nil {
		return nil, err
	}

	key := domain.RecordKey{ShiftID: req.ShiftID, ProfessionalUserID: req.Professional.UserID}
	unlock := o.locks.Lock(key.String())
	defer unlock()

	if rec := o.get(key); rec != nil && rec.HasCheckIn() {
		reason := domain.ReasonAlreadyCheckedIn
		if rec.HasCheckOut() {
			reason = domain.ReasonAlreadyCheckedOut
		}
		return nil, &domain.ErrStateConflict{
			Reason:             reason,
			ShiftID:            req.ShiftID,
			ProfessionalUserID: req.Professional.UserID,
			Status:             rec.Status,
		}
	}
	if existing, ok := o.findCancellation(key); ok {
		return &existing, nil
	}

	cancelledAt := s.clock.Now()
	if req.CancelledAt != nil {
		cancelledAt = *req.CancelledAt
	}
	event := domain.CancellationEvent{
		ID:                 uuid.New().String(),
		ShiftID:            req.ShiftID,
		ProfessionalUserID: req.Professional.UserID,
		ProfessionalName:   req.Professional.Name,
		SectorID:           sectorKey(req.Sector.ID, req.Sector.Name),
		SectorName:         req.Sector.Name,
		ScheduledStartAt:   req.ScheduledStartAt,
		CancelledAt:        cancelledAt,
		Reason:             truncateRunes(strings.TrimSpace(req.Reason), domain.MaxFreeTextNoteLength),
	}
	event.IsLastMinute = IsLastMinuteCancellation(&event)

	if err := s.store.SaveCancellation(ctx, orgID, &event); err != nil {
		return nil, fmt.Errorf("save cancellation: %w", err)
	}
	o.appendCancellation(event)

	s.metrics.IncrCancellation(event.IsLastMinute)
	s.logger.Info("shift cancellation recorded",
		zap.String("organization_id", orgID),
		zap.String("shift_id", event.ShiftID),
		zap.String("professional_id", event.ProfessionalUserID),
		zap.Bool("last_minute", event.IsLastMinute),
	)
	return &event, nil
}

// ListCancellations returns every cancellation, most recent first.
func (s *LedgerService) ListCancellations(ctx context.Context, orgID string) ([]domain.CancellationEvent, error) {
	o, err := s.org(ctx, orgID)
	if err != nil {
		return nil, err
	}
	out := o.cancellationList()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CancelledAt.After(out[j].CancelledAt) })
	return out, nil
}

// ============================================================
// Reads
// ============================================================

// GetRecord returns one attendance record.
func (s *LedgerService) GetRecord(ctx context.Context, orgID, shiftID, professionalUserID string) (*domain.AttendanceRecord, error) {
	o, err := s.org(ctx, orgID)
	if err != nil {
		return nil, err
	}
	key := domain.RecordKey{ShiftID: shiftID, ProfessionalUserID: professionalUserID}
	rec := o.get(key)
	if rec == nil {
		return nil, &domain.ErrNotFound{Resource: "attendance record", ID: key.String()}
	}
	return rec, nil
}

// ListRecords returns the records matching filter, latest shift first.
func (s *LedgerService) ListRecords(ctx context.Context, orgID string, filter domain.RecordFilter) ([]domain.AttendanceRecord, error) {
	o, err := s.org(ctx, orgID)
	if err != nil {
		return nil, err
	}
	all := o.recordList()
	out := make([]domain.AttendanceRecord, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		r := all[i]
		if filter.ProfessionalUserID != "" && r.ProfessionalUserID != filter.ProfessionalUserID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// StressHistory returns a professional's scored check-outs, oldest first.
func (s *LedgerService) StressHistory(ctx context.Context, orgID, professionalUserID string) ([]domain.StressHistoryEntry, error) {
	o, err := s.org(ctx, orgID)
	if err != nil {
		return nil, err
	}
	var scored []domain.AttendanceRecord
	for _, r := range o.recordList() {
		if r.ProfessionalUserID != professionalUserID || r.StressAnalytics == nil || r.CheckOutAt == nil {
			continue
		}
		scored = append(scored, r)
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].CheckOutAt.Before(*scored[j].CheckOutAt) })

	out := make([]domain.StressHistoryEntry, 0, len(scored))
	for _, r := range scored {
		level := 0
		if r.StressSelfReport != nil {
			level = r.StressSelfReport.Level
		}
		out = append(out, domain.StressHistoryEntry{
			ShiftID:    r.ShiftID,
			ShiftDate:  r.ShiftDate,
			SectorName: r.SectorName,
			CheckOutAt: r.CheckOutAt.Format(time.RFC3339),
			Level:      level,
			Analytics:  *r.StressAnalytics,
		})
	}
	return out, nil
}

// Snapshot returns an eventually consistent copy of an organization's
// ledger together with its mutation version.
func (s *LedgerService) Snapshot(ctx context.Context, orgID string) (*domain.LedgerSnapshot, uint64, error) {
	o, err := s.org(ctx, orgID)
	if err != nil {
		return nil, 0, err
	}
	version := o.version.Load()
	return o.snapshot(), version, nil
}

// Ping checks the store.
func (s *LedgerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ============================================================
// Input validation
// ============================================================

func validateCheckIn(req *domain.CheckInRequest) error {
	if err := required("shiftId", req.ShiftID); err != nil {
		return err
	}
	if err := required("professional.userId", req.Professional.UserID); err != nil {
		return err
	}
	if err := required("sector.name", req.Sector.Name); err != nil {
		return err
	}
	if !req.PatientLoad.Valid() {
		return &domain.ErrValidation{Field: "patientLoad", Message: fmt.Sprintf("expected Baixa, Moderada or Alta, got %q", req.PatientLoad)}
	}
	return validateFix(req.Geo)
}

func validateAssignment(a domain.ShiftAssignment) error {
	if err := required("shiftId", a.ShiftID); err != nil {
		return err
	}
	if err := required("professional.userId", a.Professional.UserID); err != nil {
		return err
	}
	if err := required("sectorName", a.SectorName); err != nil {
		return err
	}
	if !a.PatientLoad.Valid() {
		return &domain.ErrValidation{Field: "patientLoad", Message: fmt.Sprintf("expected Baixa, Moderada or Alta, got %q", a.PatientLoad)}
	}
	return nil
}
