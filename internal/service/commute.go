package service

import (
	"encoding/binary"
	"math"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// HashCommuteEstimator is a PLACEHOLDER for a measured or geocoded commute
// distance: it hashes the (professional, sector) pair into a stable value
// in [2, 18] km so sample data is reproducible. Replace before relying on
// the commute term of the predictive risk.
type HashCommuteEstimator struct{}

// EstimateKm implements port.CommuteEstimator.
func (HashCommuteEstimator) EstimateKm(professionalUserID, sectorName string) float64 {
	sum := blake2b.Sum256([]byte(professionalUserID + "|" + strings.ToLower(strings.TrimSpace(sectorName))))
	v := float64(binary.BigEndian.Uint32(sum[:4])) / float64(math.MaxUint32)
	return math.Round((2+v*16)*10) / 10
}
