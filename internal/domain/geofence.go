package domain

import "time"

// ============================================================
// Geofences & location fixes
// ============================================================

const (
	GeofenceMinRadiusMeters     = 30.0
	GeofenceMaxRadiusMeters     = 1000.0
	GeofenceDefaultRadiusMeters = 180.0

	// MaxAccuracyBonusMeters caps how much a reported GPS accuracy can widen
	// the tolerance around a geofence.
	MaxAccuracyBonusMeters = 120.0
)

// Geofence is the circular zone a professional must be inside to check in
// or out of a sector. One active geofence per sector.
type Geofence struct {
	SectorID            string    `json:"sectorId"`
	SectorName          string    `json:"sectorName"`
	Lat                 float64   `json:"lat"`
	Lng                 float64   `json:"lng"`
	RadiusMeters        float64   `json:"radiusMeters"`
	Label               string    `json:"label"`
	AutoCheckInEnabled  bool      `json:"autoCheckInEnabled"`
	ConfiguredByManager bool      `json:"configuredByManager"`
	ConfiguredAt        time.Time `json:"configuredAt"`
}

// Center returns the geofence center as a point.
func (g Geofence) Center() GeoPoint {
	return GeoPoint{Lat: g.Lat, Lng: g.Lng}
}

// GeofenceInput is the body for PUT /v1/orgs/{orgId}/geofences/{sectorId}.
// Optional fields fall back to defaults when nil.
type GeofenceInput struct {
	SectorID           string   `json:"sectorId"`
	SectorName         string   `json:"sectorName"`
	Lat                float64  `json:"lat"`
	Lng                float64  `json:"lng"`
	RadiusMeters       *float64 `json:"radiusMeters,omitempty"`
	Label              *string  `json:"label,omitempty"`
	AutoCheckInEnabled *bool    `json:"autoCheckInEnabled,omitempty"`
}

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GeoSource tells genuine device fixes apart from simulated ones.
type GeoSource string

const (
	GeoSourceDevice    GeoSource = "device"
	GeoSourceSimulated GeoSource = "simulated"
)

// GeoFix is the raw location reported by the device at the boundary.
type GeoFix struct {
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	AccuracyMeters float64   `json:"accuracyMeters"`
	CapturedAt     time.Time `json:"capturedAt"`
	Source         GeoSource `json:"source"`
}

// Point returns the fix coordinates.
func (f GeoFix) Point() GeoPoint {
	return GeoPoint{Lat: f.Lat, Lng: f.Lng}
}

// GeoSnapshot is a location fix after distance validation against a
// geofence. Produced only by service.ValidateFix.
type GeoSnapshot struct {
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	AccuracyMeters float64   `json:"accuracyMeters"`
	CapturedAt     time.Time `json:"capturedAt"`
	DistanceMeters float64   `json:"distanceMeters"`
	WithinGeofence bool      `json:"withinGeofence"`
	Source         GeoSource `json:"source"`
}
