package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/observability"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/resilience"
	"github.com/boddenberg/plantao-presenca-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var analyticsTracer = otel.Tracer("service/analytics")

// AnalyticsService builds the manager snapshot and the predictive report
// from a ledger snapshot plus the roster and scheduling collaborators.
// Results are cached per (organization, ledger version, now).
type AnalyticsService struct {
	ledger   *LedgerService
	roster   port.RosterProvider
	schedule port.ScheduleProvider
	commute  port.CommuteEstimator
	cache    port.Cache[any]
	bulkhead *resilience.Bulkhead
	clock    port.Clock
	horizon  time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// AnalyticsDeps groups the collaborators of AnalyticsService.
type AnalyticsDeps struct {
	Ledger   *LedgerService
	Roster   port.RosterProvider
	Schedule port.ScheduleProvider
	Commute  port.CommuteEstimator
	Cache    port.Cache[any]
	Bulkhead *resilience.Bulkhead
	Clock    port.Clock
	Horizon  time.Duration
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// NewAnalyticsService creates the analytics service with all dependencies injected.
func NewAnalyticsService(d AnalyticsDeps) *AnalyticsService {
	if d.Commute == nil {
		d.Commute = HashCommuteEstimator{}
	}
	if d.Horizon <= 0 {
		d.Horizon = 7 * 24 * time.Hour
	}
	return &AnalyticsService{
		ledger:   d.Ledger,
		roster:   d.Roster,
		schedule: d.Schedule,
		commute:  d.Commute,
		cache:    d.Cache,
		bulkhead: d.Bulkhead,
		clock:    d.Clock,
		horizon:  d.Horizon,
		metrics:  d.Metrics,
		logger:   d.Logger,
	}
}

// resolveNow truncates the clock to the minute so repeated dashboard
// polls within a minute share a cache entry.
func (s *AnalyticsService) resolveNow(now *time.Time) time.Time {
	if now != nil {
		return *now
	}
	return s.clock.Now().Truncate(time.Minute)
}

// ManagerAnalytics returns the manager snapshot evaluated at now (or the
// current minute when nil).
func (s *AnalyticsService) ManagerAnalytics(ctx context.Context, orgID string, now *time.Time) (*domain.AttendanceManagerAnalytics, error) {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.ManagerAnalytics")
	defer span.End()
	span.SetAttributes(attribute.String("organization.id", orgID))

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("manager_analytics", time.Since(start)) }()

	at := s.resolveNow(now)
	snap, version, err := s.ledger.Snapshot(ctx, orgID)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("manager:%s:%d:%d", orgID, version, at.Unix())
	if cached, ok := s.cache.Get(cacheKey); ok {
		if a, ok := cached.(*domain.AttendanceManagerAnalytics); ok {
			s.metrics.IncrCacheHit("analytics")
			return a, nil
		}
	}
	s.metrics.IncrCacheMiss("analytics")

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.bulkhead.Release()

	roster := s.fetchRoster(ctx, orgID)
	result := BuildManagerAnalytics(AnalyticsInput{
		OrganizationID: orgID,
		Records:        snap.Records,
		Cancellations:  snap.Cancellations,
		Roster:         roster,
		Now:            at,
	})

	s.cache.Set(cacheKey, result)
	return result, nil
}

// PredictiveRisk scores the assignments the scheduling collaborator lists
// between now and now + horizon.
func (s *AnalyticsService) PredictiveRisk(ctx context.Context, orgID string, now *time.Time) (*domain.PredictiveRiskReport, error) {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.PredictiveRisk")
	defer span.End()
	span.SetAttributes(attribute.String("organization.id", orgID))

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("predictive_risk", time.Since(start)) }()

	at := s.resolveNow(now)
	snap, version, err := s.ledger.Snapshot(ctx, orgID)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("predictive:%s:%d:%d", orgID, version, at.Unix())
	if cached, ok := s.cache.Get(cacheKey); ok {
		if r, ok := cached.(*domain.PredictiveRiskReport); ok {
			s.metrics.IncrCacheHit("analytics")
			return r, nil
		}
	}
	s.metrics.IncrCacheMiss("analytics")

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.bulkhead.Release()

	var (
		assignments []domain.ShiftAssignment
		roster      []domain.Professional
	)
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a, err := s.schedule.ListAssignments(gCtx, orgID, at, at.Add(s.horizon))
		if err != nil {
			s.logger.Error("failed to fetch assignments",
				zap.String("organization_id", orgID),
				zap.Error(err),
			)
			s.metrics.IncrExternalError("schedule")
			return fmt.Errorf("assignments fetch: %w", err)
		}
		assignments = a
		return nil
	})
	g.Go(func() error {
		roster = s.fetchRoster(gCtx, orgID)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := s.predict(orgID, snap, roster, assignments, at)
	s.cache.Set(cacheKey, report)
	return report, nil
}

// PredictiveRiskFor scores caller-supplied assignments. Each assignment
// must be well formed; the report itself never fails on sparse history.
func (s *AnalyticsService) PredictiveRiskFor(ctx context.Context, orgID string, now *time.Time, assignments []domain.ShiftAssignment) (*domain.PredictiveRiskReport, error) {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.PredictiveRiskFor")
	defer span.End()
	span.SetAttributes(attribute.String("organization.id", orgID), attribute.Int("assignments", len(assignments)))

	for i, a := range assignments {
		if err := validateAssignment(a); err != nil {
			return nil, fmt.Errorf("assignment %d: %w", i, err)
		}
		if _, _, err := ScheduleWindow(a.ShiftDate, a.StartTime, a.EndTime, s.ledger.Location()); err != nil {
			return nil, fmt.Errorf("assignment %d: %w", i, err)
		}
	}

	at := s.resolveNow(now)
	snap, _, err := s.ledger.Snapshot(ctx, orgID)
	if err != nil {
		return nil, err
	}

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.bulkhead.Release()

	roster := s.fetchRoster(ctx, orgID)
	return s.predict(orgID, snap, roster, assignments, at), nil
}

func (s *AnalyticsService) predict(orgID string, snap *domain.LedgerSnapshot, roster []domain.Professional, assignments []domain.ShiftAssignment, at time.Time) *domain.PredictiveRiskReport {
	return PredictRisk(PredictiveInput{
		OrganizationID: orgID,
		Records:        snap.Records,
		Cancellations:  snap.Cancellations,
		Roster:         roster,
		Upcoming:       assignments,
		Now:            at,
		Location:       s.ledger.Location(),
		Commute:        s.commute,
	})
}

// fetchRoster labels analytics output only, so a failing roster degrades
// to the names stored on the records.
func (s *AnalyticsService) fetchRoster(ctx context.Context, orgID string) []domain.Professional {
	roster, err := s.roster.ListProfessionals(ctx, orgID)
	if err != nil {
		s.logger.Warn("roster unavailable, using names stored on records",
			zap.String("organization_id", orgID),
			zap.Error(err),
		)
		s.metrics.IncrExternalError("roster")
		return nil
	}
	return roster
}
