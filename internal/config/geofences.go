package config

import (
	"fmt"
	"os"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"

	"gopkg.in/yaml.v3"
)

// GeofenceSeed is the optional YAML file that pre-configures geofences:
//
//	organizations:
//	  - id: hospital-central
//	    geofences:
//	      - sectorId: uti-adulto
//	        sectorName: UTI Adulto
//	        lat: -23.5572
//	        lng: -46.6701
//	        radiusMeters: 150
type GeofenceSeed struct {
	Organizations []OrganizationSeed `yaml:"organizations"`
}

// OrganizationSeed lists the geofences of one organization.
type OrganizationSeed struct {
	ID        string         `yaml:"id"`
	Geofences []GeofenceSpec `yaml:"geofences"`
}

// GeofenceSpec mirrors domain.GeofenceInput in YAML.
type GeofenceSpec struct {
	SectorID           string   `yaml:"sectorId"`
	SectorName         string   `yaml:"sectorName"`
	Lat                float64  `yaml:"lat"`
	Lng                float64  `yaml:"lng"`
	RadiusMeters       *float64 `yaml:"radiusMeters"`
	Label              *string  `yaml:"label"`
	AutoCheckInEnabled *bool    `yaml:"autoCheckInEnabled"`
}

// Input converts the entry for the geofence upsert.
func (g GeofenceSpec) Input() domain.GeofenceInput {
	return domain.GeofenceInput{
		SectorID:           g.SectorID,
		SectorName:         g.SectorName,
		Lat:                g.Lat,
		Lng:                g.Lng,
		RadiusMeters:       g.RadiusMeters,
		Label:              g.Label,
		AutoCheckInEnabled: g.AutoCheckInEnabled,
	}
}

// LoadGeofenceSeed reads and parses the seed file.
func LoadGeofenceSeed(path string) (*GeofenceSeed, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read geofence seed: %w", err)
	}
	var seed GeofenceSeed
	if err := yaml.Unmarshal(buf, &seed); err != nil {
		return nil, fmt.Errorf("parse geofence seed: %w", err)
	}
	for i, org := range seed.Organizations {
		if org.ID == "" {
			return nil, fmt.Errorf("geofence seed: organization %d has no id", i)
		}
	}
	return &seed, nil
}
