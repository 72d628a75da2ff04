package domain

import "time"

// ============================================================
// Attendance ledger
// ============================================================

// AttendanceStatus only moves forward: PENDENTE → CHECKED_IN → CHECKED_OUT.
type AttendanceStatus string

const (
	StatusPending    AttendanceStatus = "PENDENTE"
	StatusCheckedIn  AttendanceStatus = "CHECKED_IN"
	StatusCheckedOut AttendanceStatus = "CHECKED_OUT"
)

// PatientLoad is the optional ordinal workload of a shift.
type PatientLoad string

const (
	PatientLoadLow      PatientLoad = "Baixa"
	PatientLoadModerate PatientLoad = "Moderada"
	PatientLoadHigh     PatientLoad = "Alta"
)

// Valid reports whether the load is empty or one of the known values.
func (p PatientLoad) Valid() bool {
	switch p {
	case "", PatientLoadLow, PatientLoadModerate, PatientLoadHigh:
		return true
	}
	return false
}

// OnTimeToleranceMinutes is the lateness still counted as on time.
const OnTimeToleranceMinutes = 5

// Professional identifies a shift worker (roster collaborator).
type Professional struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Specialty string `json:"specialty,omitempty"`
}

// Sector identifies the unit where a shift happens.
type Sector struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RecordKey uniquely identifies an attendance record.
type RecordKey struct {
	ShiftID            string
	ProfessionalUserID string
}

func (k RecordKey) String() string {
	return k.ShiftID + "::" + k.ProfessionalUserID
}

// AttendanceRecord is the ledger entry for one (shift, professional).
// Records are never deleted, only transitioned.
type AttendanceRecord struct {
	ID                    string                      `json:"id"`
	ShiftID               string                      `json:"shiftId"`
	ProfessionalUserID    string                      `json:"professionalUserId"`
	ProfessionalName      string                      `json:"professionalName"`
	Specialty             string                      `json:"specialty,omitempty"`
	SectorID              string                      `json:"sectorId"`
	SectorName            string                      `json:"sectorName"`
	ShiftDate             string                      `json:"shiftDate"` // YYYY-MM-DD
	StartTime             string                      `json:"startTime"` // HH:mm
	EndTime               string                      `json:"endTime"`   // HH:mm
	PatientLoad           PatientLoad                 `json:"patientLoad,omitempty"`
	ScheduledStartAt      time.Time                   `json:"scheduledStartAt"`
	ScheduledEndAt        time.Time                   `json:"scheduledEndAt"`
	Status                AttendanceStatus            `json:"status"`
	OnTime                bool                        `json:"onTime"`
	LateMinutes           int                         `json:"lateMinutes"`
	EarlyCheckoutMinutes  int                         `json:"earlyCheckoutMinutes"`
	OvertimeMinutes       int                         `json:"overtimeMinutes"`
	WorkedMinutes         int                         `json:"workedMinutes"`
	CheckInAt             *time.Time                  `json:"checkInAt,omitempty"`
	CheckOutAt            *time.Time                  `json:"checkOutAt,omitempty"`
	CheckIn               *GeoSnapshot                `json:"checkIn,omitempty"`
	CheckOut              *GeoSnapshot                `json:"checkOut,omitempty"`
	StressSelfReport      *StressSelfReport           `json:"stressSelfReport,omitempty"`
	StressAnalytics       *StressAnalytics            `json:"stressAnalytics,omitempty"`
	InstitutionEvaluation *InstitutionShiftEvaluation `json:"institutionEvaluation,omitempty"`
	CreatedAt             time.Time                   `json:"createdAt"`
	UpdatedAt             time.Time                   `json:"updatedAt"`
}

// Key returns the record's unique key.
func (r *AttendanceRecord) Key() RecordKey {
	return RecordKey{ShiftID: r.ShiftID, ProfessionalUserID: r.ProfessionalUserID}
}

// HasCheckIn reports whether the professional checked in.
func (r *AttendanceRecord) HasCheckIn() bool {
	return r.CheckInAt != nil
}

// HasCheckOut reports whether the professional checked out.
func (r *AttendanceRecord) HasCheckOut() bool {
	return r.CheckOutAt != nil
}

// Clone returns a deep copy so callers never share mutable state with the ledger.
func (r *AttendanceRecord) Clone() *AttendanceRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.CheckInAt != nil {
		t := *r.CheckInAt
		c.CheckInAt = &t
	}
	if r.CheckOutAt != nil {
		t := *r.CheckOutAt
		c.CheckOutAt = &t
	}
	if r.CheckIn != nil {
		g := *r.CheckIn
		c.CheckIn = &g
	}
	if r.CheckOut != nil {
		g := *r.CheckOut
		c.CheckOut = &g
	}
	if r.StressSelfReport != nil {
		s := *r.StressSelfReport
		s.Triggers = append([]StressTrigger(nil), r.StressSelfReport.Triggers...)
		c.StressSelfReport = &s
	}
	if r.StressAnalytics != nil {
		a := *r.StressAnalytics
		a.DominantDrivers = append([]StressDriver(nil), r.StressAnalytics.DominantDrivers...)
		if r.StressAnalytics.RestHoursSincePrevious != nil {
			h := *r.StressAnalytics.RestHoursSincePrevious
			a.RestHoursSincePrevious = &h
		}
		c.StressAnalytics = &a
	}
	if r.InstitutionEvaluation != nil {
		e := *r.InstitutionEvaluation
		c.InstitutionEvaluation = &e
	}
	return &c
}

// ShiftAssignment is what the scheduling collaborator hands us: a
// professional assigned to a sector for a date and time window.
type ShiftAssignment struct {
	ShiftID      string       `json:"shiftId"`
	Professional Professional `json:"professional"`
	SectorID     string       `json:"sectorId,omitempty"`
	SectorName   string       `json:"sectorName"`
	ShiftDate    string       `json:"shiftDate"`
	StartTime    string       `json:"startTime"`
	EndTime      string       `json:"endTime"`
	PatientLoad  PatientLoad  `json:"patientLoad,omitempty"`
}

// CheckInRequest is the body for POST /v1/orgs/{orgId}/attendance/check-in.
type CheckInRequest struct {
	ShiftID      string       `json:"shiftId"`
	Professional Professional `json:"professional"`
	Sector       Sector       `json:"sector"`
	ShiftDate    string       `json:"shiftDate"`
	StartTime    string       `json:"startTime"`
	EndTime      string       `json:"endTime"`
	PatientLoad  PatientLoad  `json:"patientLoad,omitempty"`
	Geo          GeoFix       `json:"-"`
}

// CheckOutRequest is the body for POST /v1/orgs/{orgId}/attendance/check-out.
type CheckOutRequest struct {
	ShiftID               string                      `json:"shiftId"`
	ProfessionalUserID    string                      `json:"professionalUserId"`
	Geo                   GeoFix                      `json:"-"`
	StressSelfReport      StressSelfReport            `json:"stressSelfReport"`
	InstitutionEvaluation *InstitutionShiftEvaluation `json:"institutionEvaluation,omitempty"`
}

// RecordFilter narrows GET /v1/orgs/{orgId}/attendance.
type RecordFilter struct {
	ProfessionalUserID string
	Status             AttendanceStatus
}

// LedgerSnapshot is the full persisted state of one organization.
type LedgerSnapshot struct {
	OrganizationID string              `json:"organizationId"`
	Geofences      map[string]Geofence `json:"geofences"`
	Records        []AttendanceRecord  `json:"records"`
	Cancellations  []CancellationEvent `json:"cancellations"`
}
