package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ============================================================
// Attendance ledger: port.LedgerStore over PostgREST
// ============================================================

const (
	tableOrganizations = "presence_organizations"
	tableGeofences     = "presence_geofences"
	tableRecords       = "attendance_records"
	tableCancellations = "shift_cancellations"
)

type geofenceRow struct {
	OrganizationID      string    `json:"organization_id"`
	SectorID            string    `json:"sector_id"`
	SectorName          string    `json:"sector_name"`
	Lat                 float64   `json:"lat"`
	Lng                 float64   `json:"lng"`
	RadiusMeters        float64   `json:"radius_meters"`
	Label               string    `json:"label"`
	AutoCheckInEnabled  bool      `json:"auto_check_in_enabled"`
	ConfiguredByManager bool      `json:"configured_by_manager"`
	ConfiguredAt        time.Time `json:"configured_at"`
}

// recordRow keeps the key columns queryable and the full record as jsonb.
type recordRow struct {
	OrganizationID     string                  `json:"organization_id"`
	ID                 string                  `json:"id"`
	ShiftID            string                  `json:"shift_id"`
	ProfessionalUserID string                  `json:"professional_user_id"`
	Status             domain.AttendanceStatus `json:"status"`
	ScheduledStartAt   time.Time               `json:"scheduled_start_at"`
	Data               domain.AttendanceRecord `json:"data"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

type cancellationRow struct {
	OrganizationID     string    `json:"organization_id"`
	ID                 string    `json:"id"`
	ShiftID            string    `json:"shift_id"`
	ProfessionalUserID string    `json:"professional_user_id"`
	ProfessionalName   string    `json:"professional_name"`
	SectorID           string    `json:"sector_id"`
	SectorName         string    `json:"sector_name"`
	ScheduledStartAt   time.Time `json:"scheduled_start_at"`
	CancelledAt        time.Time `json:"cancelled_at"`
	Reason             string    `json:"reason"`
	IsLastMinute       bool      `json:"is_last_minute"`
}

// execute runs fn through the breaker and retry policy and wraps failures
// as external-service errors. Domain errors pass through.
func (c *Client) execute(ctx context.Context, op string, fn func() error) error {
	err := resilience.Execute(ctx, c.cb, c.cfg, "supabase", fn)
	if err == nil {
		return nil
	}
	var notFound *domain.ErrNotFound
	var open *domain.ErrCircuitOpen
	if errors.As(err, &notFound) || errors.As(err, &open) {
		return err
	}
	return &domain.ErrExternalService{Service: "supabase/" + op, Err: err}
}

// getRows fetches path and decodes the JSON array into out.
func (c *Client) getRows(ctx context.Context, path string, out any) error {
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return err
	}
	if body == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resilience.Permanent(fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}

// LoadSnapshot reads an organization's geofences, records and
// cancellations concurrently.
func (c *Client) LoadSnapshot(ctx context.Context, orgID string) (*domain.LedgerSnapshot, error) {
	ctx, span := tracer.Start(ctx, "Supabase.LoadSnapshot")
	defer span.End()
	span.SetAttributes(attribute.String("organization.id", orgID))

	org := url.QueryEscape(orgID)

	err := c.execute(ctx, "organizations", func() error {
		var orgs []struct {
			ID string `json:"id"`
		}
		if err := c.getRows(ctx, fmt.Sprintf("%s?id=eq.%s&select=id&limit=1", tableOrganizations, org), &orgs); err != nil {
			return err
		}
		if len(orgs) == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "organization", ID: orgID})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var (
		fences []geofenceRow
		recs   []recordRow
		cancs  []cancellationRow
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.execute(gCtx, "geofences", func() error {
			fences = nil
			return c.getRows(gCtx, fmt.Sprintf("%s?organization_id=eq.%s", tableGeofences, org), &fences)
		})
	})
	g.Go(func() error {
		return c.execute(gCtx, "records", func() error {
			recs = nil
			return c.getRows(gCtx, fmt.Sprintf("%s?organization_id=eq.%s&order=scheduled_start_at.asc", tableRecords, org), &recs)
		})
	})
	g.Go(func() error {
		return c.execute(gCtx, "cancellations", func() error {
			cancs = nil
			return c.getRows(gCtx, fmt.Sprintf("%s?organization_id=eq.%s&order=cancelled_at.asc", tableCancellations, org), &cancs)
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &domain.LedgerSnapshot{
		OrganizationID: orgID,
		Geofences:      make(map[string]domain.Geofence, len(fences)),
		Records:        make([]domain.AttendanceRecord, 0, len(recs)),
		Cancellations:  make([]domain.CancellationEvent, 0, len(cancs)),
	}
	for _, f := range fences {
		snap.Geofences[f.SectorID] = domain.Geofence{
			SectorID:            f.SectorID,
			SectorName:          f.SectorName,
			Lat:                 f.Lat,
			Lng:                 f.Lng,
			RadiusMeters:        f.RadiusMeters,
			Label:               f.Label,
			AutoCheckInEnabled:  f.AutoCheckInEnabled,
			ConfiguredByManager: f.ConfiguredByManager,
			ConfiguredAt:        f.ConfiguredAt,
		}
	}
	for _, r := range recs {
		snap.Records = append(snap.Records, r.Data)
	}
	for _, e := range cancs {
		snap.Cancellations = append(snap.Cancellations, domain.CancellationEvent{
			ID:                 e.ID,
			ShiftID:            e.ShiftID,
			ProfessionalUserID: e.ProfessionalUserID,
			ProfessionalName:   e.ProfessionalName,
			SectorID:           e.SectorID,
			SectorName:         e.SectorName,
			ScheduledStartAt:   e.ScheduledStartAt,
			CancelledAt:        e.CancelledAt,
			Reason:             e.Reason,
			IsLastMinute:       e.IsLastMinute,
		})
	}

	c.logger.Debug("supabase: snapshot loaded",
		zap.String("organization_id", orgID),
		zap.Int("geofences", len(fences)),
		zap.Int("records", len(recs)),
		zap.Int("cancellations", len(cancs)),
	)
	return snap, nil
}

// SaveGeofence upserts the sector's geofence.
func (c *Client) SaveGeofence(ctx context.Context, orgID string, g *domain.Geofence) error {
	ctx, span := tracer.Start(ctx, "Supabase.SaveGeofence")
	defer span.End()

	row := geofenceRow{
		OrganizationID:      orgID,
		SectorID:            g.SectorID,
		SectorName:          g.SectorName,
		Lat:                 g.Lat,
		Lng:                 g.Lng,
		RadiusMeters:        g.RadiusMeters,
		Label:               g.Label,
		AutoCheckInEnabled:  g.AutoCheckInEnabled,
		ConfiguredByManager: g.ConfiguredByManager,
		ConfiguredAt:        g.ConfiguredAt,
	}
	return c.execute(ctx, "geofences", func() error {
		return c.doUpsert(ctx, tableGeofences, "organization_id,sector_id", row)
	})
}

// SaveRecord upserts an attendance record by (shift, professional).
func (c *Client) SaveRecord(ctx context.Context, orgID string, r *domain.AttendanceRecord) error {
	ctx, span := tracer.Start(ctx, "Supabase.SaveRecord")
	defer span.End()
	span.SetAttributes(attribute.String("shift.id", r.ShiftID))

	row := recordRow{
		OrganizationID:     orgID,
		ID:                 r.ID,
		ShiftID:            r.ShiftID,
		ProfessionalUserID: r.ProfessionalUserID,
		Status:             r.Status,
		ScheduledStartAt:   r.ScheduledStartAt,
		Data:               *r,
		UpdatedAt:          r.UpdatedAt,
	}
	return c.execute(ctx, "records", func() error {
		return c.doUpsert(ctx, tableRecords, "organization_id,shift_id,professional_user_id", row)
	})
}

// SaveCancellation inserts a cancellation event.
func (c *Client) SaveCancellation(ctx context.Context, orgID string, e *domain.CancellationEvent) error {
	ctx, span := tracer.Start(ctx, "Supabase.SaveCancellation")
	defer span.End()

	row := cancellationRow{
		OrganizationID:     orgID,
		ID:                 e.ID,
		ShiftID:            e.ShiftID,
		ProfessionalUserID: e.ProfessionalUserID,
		ProfessionalName:   e.ProfessionalName,
		SectorID:           e.SectorID,
		SectorName:         e.SectorName,
		ScheduledStartAt:   e.ScheduledStartAt,
		CancelledAt:        e.CancelledAt,
		Reason:             e.Reason,
		IsLastMinute:       e.IsLastMinute,
	}
	return c.execute(ctx, "cancellations", func() error {
		return c.doUpsert(ctx, tableCancellations, "organization_id,shift_id,professional_user_id", row)
	})
}
