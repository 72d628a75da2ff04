// Package postgres persists the attendance ledger with gorm.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer = otel.Tracer("postgres")

// Organization is a tenant known to the ledger.
type Organization struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Organization) TableName() string { return "presence_organizations" }

// GeofenceModel is one sector geofence.
type GeofenceModel struct {
	OrganizationID      string    `gorm:"column:organization_id;primaryKey"`
	SectorID            string    `gorm:"column:sector_id;primaryKey"`
	SectorName          string    `gorm:"column:sector_name"`
	Lat                 float64   `gorm:"column:lat"`
	Lng                 float64   `gorm:"column:lng"`
	RadiusMeters        float64   `gorm:"column:radius_meters"`
	Label               string    `gorm:"column:label"`
	AutoCheckInEnabled  bool      `gorm:"column:auto_check_in_enabled"`
	ConfiguredByManager bool      `gorm:"column:configured_by_manager"`
	ConfiguredAt        time.Time `gorm:"column:configured_at"`
}

func (GeofenceModel) TableName() string { return "presence_geofences" }

// AttendanceRecordModel keeps scalar fields as columns and the nested
// snapshots as jsonb.
type AttendanceRecordModel struct {
	OrganizationID        string         `gorm:"column:organization_id;primaryKey"`
	ShiftID               string         `gorm:"column:shift_id;primaryKey"`
	ProfessionalUserID    string         `gorm:"column:professional_user_id;primaryKey"`
	ID                    string         `gorm:"column:id;uniqueIndex"`
	ProfessionalName      string         `gorm:"column:professional_name"`
	Specialty             string         `gorm:"column:specialty"`
	SectorID              string         `gorm:"column:sector_id"`
	SectorName            string         `gorm:"column:sector_name"`
	ShiftDate             string         `gorm:"column:shift_date"`
	StartTime             string         `gorm:"column:start_time"`
	EndTime               string         `gorm:"column:end_time"`
	PatientLoad           string         `gorm:"column:patient_load"`
	ScheduledStartAt      time.Time      `gorm:"column:scheduled_start_at;index"`
	ScheduledEndAt        time.Time      `gorm:"column:scheduled_end_at"`
	Status                string         `gorm:"column:status;index"`
	OnTime                bool           `gorm:"column:on_time"`
	LateMinutes           int            `gorm:"column:late_minutes"`
	EarlyCheckoutMinutes  int            `gorm:"column:early_checkout_minutes"`
	OvertimeMinutes       int            `gorm:"column:overtime_minutes"`
	WorkedMinutes         int            `gorm:"column:worked_minutes"`
	CheckInAt             *time.Time     `gorm:"column:check_in_at"`
	CheckOutAt            *time.Time     `gorm:"column:check_out_at"`
	CheckIn               datatypes.JSON `gorm:"column:check_in;type:jsonb"`
	CheckOut              datatypes.JSON `gorm:"column:check_out;type:jsonb"`
	StressSelfReport      datatypes.JSON `gorm:"column:stress_self_report;type:jsonb"`
	StressAnalytics       datatypes.JSON `gorm:"column:stress_analytics;type:jsonb"`
	InstitutionEvaluation datatypes.JSON `gorm:"column:institution_evaluation;type:jsonb"`
	CreatedAt             time.Time      `gorm:"column:created_at"`
	UpdatedAt             time.Time      `gorm:"column:updated_at"`
}

func (AttendanceRecordModel) TableName() string { return "attendance_records" }

// CancellationModel is one shift cancellation.
type CancellationModel struct {
	OrganizationID     string    `gorm:"column:organization_id;primaryKey"`
	ShiftID            string    `gorm:"column:shift_id;primaryKey"`
	ProfessionalUserID string    `gorm:"column:professional_user_id;primaryKey"`
	ID                 string    `gorm:"column:id;uniqueIndex"`
	ProfessionalName   string    `gorm:"column:professional_name"`
	SectorID           string    `gorm:"column:sector_id"`
	SectorName         string    `gorm:"column:sector_name"`
	ScheduledStartAt   time.Time `gorm:"column:scheduled_start_at"`
	CancelledAt        time.Time `gorm:"column:cancelled_at;index"`
	Reason             string    `gorm:"column:reason"`
	IsLastMinute       bool      `gorm:"column:is_last_minute"`
}

func (CancellationModel) TableName() string { return "shift_cancellations" }

// Store implements port.LedgerStore on PostgreSQL.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to dsn and migrates the ledger tables.
func Open(dsn string, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)

	s := &Store{db: db, logger: logger}
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	logger.Info("postgres ledger store ready")
	return s, nil
}

// NewStore wraps an existing gorm handle.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Migrate creates or updates the ledger tables.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&Organization{}, &GeofenceModel{}, &AttendanceRecordModel{}, &CancellationModel{}); err != nil {
		return fmt.Errorf("migrate ledger tables: %w", err)
	}
	return nil
}

// EnsureOrganizations registers organizations that do not exist yet.
func (s *Store) EnsureOrganizations(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		org := Organization{ID: id, Name: id}
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&org).Error; err != nil {
			return external("organizations", err)
		}
	}
	return nil
}

// LoadSnapshot implements port.LedgerStore.
func (s *Store) LoadSnapshot(ctx context.Context, orgID string) (*domain.LedgerSnapshot, error) {
	ctx, span := tracer.Start(ctx, "Postgres.LoadSnapshot")
	defer span.End()

	db := s.db.WithContext(ctx)

	var org Organization
	if err := db.Where("id = ?", orgID).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.ErrNotFound{Resource: "organization", ID: orgID}
		}
		return nil, external("organizations", err)
	}

	var fences []GeofenceModel
	if err := db.Where("organization_id = ?", orgID).Find(&fences).Error; err != nil {
		return nil, external("geofences", err)
	}
	var recs []AttendanceRecordModel
	if err := db.Where("organization_id = ?", orgID).Order("scheduled_start_at ASC").Find(&recs).Error; err != nil {
		return nil, external("records", err)
	}
	var cancs []CancellationModel
	if err := db.Where("organization_id = ?", orgID).Order("cancelled_at ASC").Find(&cancs).Error; err != nil {
		return nil, external("cancellations", err)
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
	for i := range recs {
		r, err := recs[i].toDomain()
		if err != nil {
			return nil, external("records", err)
		}
		snap.Records = append(snap.Records, *r)
	}
	for _, c := range cancs {
		snap.Cancellations = append(snap.Cancellations, domain.CancellationEvent{
			ID:                 c.ID,
			ShiftID:            c.ShiftID,
			ProfessionalUserID: c.ProfessionalUserID,
			ProfessionalName:   c.ProfessionalName,
			SectorID:           c.SectorID,
			SectorName:         c.SectorName,
			ScheduledStartAt:   c.ScheduledStartAt,
			CancelledAt:        c.CancelledAt,
			Reason:             c.Reason,
			IsLastMinute:       c.IsLastMinute,
		})
	}
	return snap, nil
}

// SaveGeofence implements port.LedgerStore.
func (s *Store) SaveGeofence(ctx context.Context, orgID string, g *domain.Geofence) error {
	ctx, span := tracer.Start(ctx, "Postgres.SaveGeofence")
	defer span.End()

	m := GeofenceModel{
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
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "sector_id"}},
		UpdateAll: true,
	}).Create(&m).Error
	if err != nil {
		return external("geofences", err)
	}
	return nil
}

// SaveRecord implements port.LedgerStore.
func (s *Store) SaveRecord(ctx context.Context, orgID string, r *domain.AttendanceRecord) error {
	ctx, span := tracer.Start(ctx, "Postgres.SaveRecord")
	defer span.End()

	m, err := recordModel(orgID, r)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "shift_id"}, {Name: "professional_user_id"}},
		UpdateAll: true,
	}).Create(m).Error
	if err != nil {
		return external("records", err)
	}
	return nil
}

// SaveCancellation implements port.LedgerStore.
func (s *Store) SaveCancellation(ctx context.Context, orgID string, e *domain.CancellationEvent) error {
	ctx, span := tracer.Start(ctx, "Postgres.SaveCancellation")
	defer span.End()

	m := CancellationModel{
		OrganizationID:     orgID,
		ShiftID:            e.ShiftID,
		ProfessionalUserID: e.ProfessionalUserID,
		ID:                 e.ID,
		ProfessionalName:   e.ProfessionalName,
		SectorID:           e.SectorID,
		SectorName:         e.SectorName,
		ScheduledStartAt:   e.ScheduledStartAt,
		CancelledAt:        e.CancelledAt,
		Reason:             e.Reason,
		IsLastMinute:       e.IsLastMinute,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error
	if err != nil {
		return external("cancellations", err)
	}
	return nil
}

// Ping implements port.LedgerStore.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func external(op string, err error) error {
	return &domain.ErrExternalService{Service: "postgres/" + op, Err: err}
}

func recordModel(orgID string, r *domain.AttendanceRecord) (*AttendanceRecordModel, error) {
	m := &AttendanceRecordModel{
		OrganizationID:       orgID,
		ShiftID:              r.ShiftID,
		ProfessionalUserID:   r.ProfessionalUserID,
		ID:                   r.ID,
		ProfessionalName:     r.ProfessionalName,
		Specialty:            r.Specialty,
		SectorID:             r.SectorID,
		SectorName:           r.SectorName,
		ShiftDate:            r.ShiftDate,
		StartTime:            r.StartTime,
		EndTime:              r.EndTime,
		PatientLoad:          string(r.PatientLoad),
		ScheduledStartAt:     r.ScheduledStartAt,
		ScheduledEndAt:       r.ScheduledEndAt,
		Status:               string(r.Status),
		OnTime:               r.OnTime,
		LateMinutes:          r.LateMinutes,
		EarlyCheckoutMinutes: r.EarlyCheckoutMinutes,
		OvertimeMinutes:      r.OvertimeMinutes,
		WorkedMinutes:        r.WorkedMinutes,
		CheckInAt:            r.CheckInAt,
		CheckOutAt:           r.CheckOutAt,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	var err error
	if m.CheckIn, err = jsonColumn(r.CheckIn); err != nil {
		return nil, err
	}
	if m.CheckOut, err = jsonColumn(r.CheckOut); err != nil {
		return nil, err
	}
	if m.StressSelfReport, err = jsonColumn(r.StressSelfReport); err != nil {
		return nil, err
	}
	if m.StressAnalytics, err = jsonColumn(r.StressAnalytics); err != nil {
		return nil, err
	}
	if m.InstitutionEvaluation, err = jsonColumn(r.InstitutionEvaluation); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *AttendanceRecordModel) toDomain() (*domain.AttendanceRecord, error) {
	r := &domain.AttendanceRecord{
		ID:                   m.ID,
		ShiftID:              m.ShiftID,
		ProfessionalUserID:   m.ProfessionalUserID,
		ProfessionalName:     m.ProfessionalName,
		Specialty:            m.Specialty,
		SectorID:             m.SectorID,
		SectorName:           m.SectorName,
		ShiftDate:            m.ShiftDate,
		StartTime:            m.StartTime,
		EndTime:              m.EndTime,
		PatientLoad:          domain.PatientLoad(m.PatientLoad),
		ScheduledStartAt:     m.ScheduledStartAt,
		ScheduledEndAt:       m.ScheduledEndAt,
		Status:               domain.AttendanceStatus(m.Status),
		OnTime:               m.OnTime,
		LateMinutes:          m.LateMinutes,
		EarlyCheckoutMinutes: m.EarlyCheckoutMinutes,
		OvertimeMinutes:      m.OvertimeMinutes,
		WorkedMinutes:        m.WorkedMinutes,
		CheckInAt:            m.CheckInAt,
		CheckOutAt:           m.CheckOutAt,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
	if err := fromJSONColumn(m.CheckIn, &r.CheckIn); err != nil {
		return nil, err
	}
	if err := fromJSONColumn(m.CheckOut, &r.CheckOut); err != nil {
		return nil, err
	}
	if err := fromJSONColumn(m.StressSelfReport, &r.StressSelfReport); err != nil {
		return nil, err
	}
	if err := fromJSONColumn(m.StressAnalytics, &r.StressAnalytics); err != nil {
		return nil, err
	}
	if err := fromJSONColumn(m.InstitutionEvaluation, &r.InstitutionEvaluation); err != nil {
		return nil, err
	}
	return r, nil
}

// jsonColumn encodes v as jsonb; nil pointers become SQL NULL.
func jsonColumn[T any](v *T) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func fromJSONColumn[T any](col datatypes.JSON, out **T) error {
	if len(col) == 0 || string(col) == "null" {
		return nil
	}
	v := new(T)
	if err := json.Unmarshal(col, v); err != nil {
		return err
	}
	*out = v
	return nil
}
