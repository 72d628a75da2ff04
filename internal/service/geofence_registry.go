package service

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"

	"golang.org/x/crypto/blake2b"
)

// Campus anchor used when a sector has no configured geofence.
const (
	fallbackAnchorLat    = -23.5572
	fallbackAnchorLng    = -46.6701
	fallbackMaxOffsetDeg = 0.0015
)

// GeofenceRegistry holds the active geofence of each sector of one
// organization. Safe for concurrent use.
type GeofenceRegistry struct {
	mu     sync.RWMutex
	fences map[string]domain.Geofence
}

// NewGeofenceRegistry creates a registry seeded with persisted geofences.
func NewGeofenceRegistry(initial map[string]domain.Geofence) *GeofenceRegistry {
	fences := make(map[string]domain.Geofence, len(initial))
	for k, g := range initial {
		fences[k] = g
	}
	return &GeofenceRegistry{fences: fences}
}

// BuildGeofence validates an upsert request and returns the geofence it
// describes. Omitted fields take their defaults.
func BuildGeofence(in domain.GeofenceInput, now time.Time) (domain.Geofence, error) {
	if strings.TrimSpace(in.SectorID) == "" {
		return domain.Geofence{}, &domain.ErrValidation{Field: "sectorId", Message: "required"}
	}
	if err := validateCoordinates("geofence", in.Lat, in.Lng); err != nil {
		return domain.Geofence{}, err
	}

	radius := domain.GeofenceDefaultRadiusMeters
	if in.RadiusMeters != nil {
		radius = *in.RadiusMeters
	}
	if radius < domain.GeofenceMinRadiusMeters || radius > domain.GeofenceMaxRadiusMeters {
		return domain.Geofence{}, &domain.ErrValidation{
			Field:   "radiusMeters",
			Message: fmtOutOfRange(radius, domain.GeofenceMinRadiusMeters, domain.GeofenceMaxRadiusMeters),
		}
	}

	name := strings.TrimSpace(in.SectorName)
	if name == "" {
		name = in.SectorID
	}
	label := fmt.Sprintf("Cerca %s", name)
	if in.Label != nil && strings.TrimSpace(*in.Label) != "" {
		label = strings.TrimSpace(*in.Label)
	}
	auto := false
	if in.AutoCheckInEnabled != nil {
		auto = *in.AutoCheckInEnabled
	}

	return domain.Geofence{
		SectorID:            in.SectorID,
		SectorName:          name,
		Lat:                 in.Lat,
		Lng:                 in.Lng,
		RadiusMeters:        radius,
		Label:               label,
		AutoCheckInEnabled:  auto,
		ConfiguredByManager: true,
		ConfiguredAt:        now,
	}, nil
}

// Put stores or replaces the sector's geofence.
func (r *GeofenceRegistry) Put(g domain.Geofence) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fences[g.SectorID] = g
}

// Get returns the configured geofence of a sector, if any.
func (r *GeofenceRegistry) Get(sectorID string) (domain.Geofence, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.fences[sectorID]
	return g, ok
}

// Resolve returns the configured geofence or the deterministic fallback,
// so check-in is never blocked by missing configuration.
func (r *GeofenceRegistry) Resolve(sectorID, sectorName string) domain.Geofence {
	if g, ok := r.Get(sectorID); ok {
		return g
	}
	return FallbackGeofence(sectorID, sectorName)
}

// List returns every configured geofence ordered by sector id.
func (r *GeofenceRegistry) List() []domain.Geofence {
	r.mu.RLock()
	out := make([]domain.Geofence, 0, len(r.fences))
	for _, g := range r.fences {
		out = append(out, g)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SectorID < out[j].SectorID })
	return out
}

// FallbackGeofence places an unconfigured sector near the campus anchor,
// offset by a hash of its name.
func FallbackGeofence(sectorID, sectorName string) domain.Geofence {
	sum := blake2b.Sum256([]byte(strings.ToLower(strings.TrimSpace(sectorName))))
	latOffset := unitOffset(binary.BigEndian.Uint16(sum[0:2])) * fallbackMaxOffsetDeg
	lngOffset := unitOffset(binary.BigEndian.Uint16(sum[2:4])) * fallbackMaxOffsetDeg

	return domain.Geofence{
		SectorID:           sectorID,
		SectorName:         sectorName,
		Lat:                fallbackAnchorLat + latOffset,
		Lng:                fallbackAnchorLng + lngOffset,
		RadiusMeters:       domain.GeofenceDefaultRadiusMeters,
		Label:              fmt.Sprintf("Cerca padrão %s", sectorName),
		AutoCheckInEnabled: false,
	}
}

// unitOffset maps a uint16 onto [-1, 1].
func unitOffset(v uint16) float64 {
	return float64(v)/float64(^uint16(0))*2 - 1
}

// sectorKey derives a sector id from its name when the caller sent none.
func sectorKey(id, name string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}
