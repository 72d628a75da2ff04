package service

import (
	"math"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
)

const earthRadiusMeters = 6371000.0

// Distance returns the great-circle distance in meters between two points
// using the haversine formula.
func Distance(a, b domain.GeoPoint) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng

	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// AccuracyBonus is how much a reported accuracy widens the tolerance,
// capped so low-precision fixes cannot trivially pass.
func AccuracyBonus(accuracyMeters float64) float64 {
	if accuracyMeters <= 0 || math.IsNaN(accuracyMeters) {
		return 0
	}
	return math.Min(accuracyMeters, domain.MaxAccuracyBonusMeters)
}

// Tolerance is the geofence radius plus the capped accuracy bonus.
func Tolerance(g domain.Geofence, accuracyMeters float64) float64 {
	return g.RadiusMeters + AccuracyBonus(accuracyMeters)
}

// ValidateFix measures a fix against a geofence and produces the
// immutable snapshot stored on the attendance record.
func ValidateFix(g domain.Geofence, fix domain.GeoFix) domain.GeoSnapshot {
	dist := Distance(g.Center(), fix.Point())
	return domain.GeoSnapshot{
		Lat:            fix.Lat,
		Lng:            fix.Lng,
		AccuracyMeters: fix.AccuracyMeters,
		CapturedAt:     fix.CapturedAt,
		DistanceMeters: math.Round(dist*10) / 10,
		WithinGeofence: dist <= Tolerance(g, fix.AccuracyMeters),
		Source:         fix.Source,
	}
}

func outOfGeofence(op string, g domain.Geofence, fix domain.GeoFix, snap domain.GeoSnapshot) *domain.ErrOutOfGeofence {
	return &domain.ErrOutOfGeofence{
		Operation:           op,
		Label:               g.Label,
		DistanceMeters:      snap.DistanceMeters,
		ToleranceMeters:     Tolerance(g, fix.AccuracyMeters),
		RadiusMeters:        g.RadiusMeters,
		AccuracyBonusMeters: AccuracyBonus(fix.AccuracyMeters),
	}
}

func validateCoordinates(field string, lat, lng float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return &domain.ErrValidation{Field: field + ".lat", Message: fmtOutOfRange(lat, -90, 90)}
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return &domain.ErrValidation{Field: field + ".lng", Message: fmtOutOfRange(lng, -180, 180)}
	}
	return nil
}

func validateFix(fix domain.GeoFix) error {
	if err := validateCoordinates("geo", fix.Lat, fix.Lng); err != nil {
		return err
	}
	if fix.AccuracyMeters < 0 || math.IsNaN(fix.AccuracyMeters) {
		return &domain.ErrValidation{Field: "geo.accuracyMeters", Message: fmtOutOfRange(fix.AccuracyMeters, 0, math.Inf(1))}
	}
	return nil
}
