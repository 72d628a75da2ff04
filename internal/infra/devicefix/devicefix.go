// Package devicefix turns the geolocation sent by a device into a
// domain.GeoFix. Fixes can arrive raw or as an HS256-signed token; only
// verified tokens count as genuine device fixes once a secret is set.
package devicefix

import (
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultMaxAge bounds how old a signed fix may be.
const DefaultMaxAge = 10 * time.Minute

// Input is the "geo" object of check-in and check-out bodies.
type Input struct {
	Lat            *float64  `json:"lat,omitempty"`
	Lng            *float64  `json:"lng,omitempty"`
	AccuracyMeters float64   `json:"accuracyMeters,omitempty"`
	CapturedAt     time.Time `json:"capturedAt,omitempty"`
	Source         string    `json:"source,omitempty"`
	FixToken       string    `json:"fixToken,omitempty"`
}

// Claims carried by a signed fix.
type Claims struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
	Acc float64 `json:"acc"`
	jwt.RegisteredClaims
}

// Verifier resolves Inputs into fixes.
type Verifier struct {
	secret  []byte
	require bool
	maxAge  time.Duration
	now     func() time.Time
}

// NewVerifier creates a verifier. An empty secret disables signed fixes
// and trusts the source the device reports. With requireDevice set,
// simulated fixes are refused.
func NewVerifier(secret string, requireDevice bool, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{
		secret:  []byte(secret),
		require: requireDevice,
		maxAge:  DefaultMaxAge,
		now:     now,
	}
}

// Resolve validates in and returns the fix it describes.
func (v *Verifier) Resolve(in *Input) (domain.GeoFix, error) {
	if in == nil {
		return domain.GeoFix{}, &domain.ErrValidation{Field: "geo", Message: "required"}
	}

	var fix domain.GeoFix
	var err error
	if in.FixToken != "" {
		fix, err = v.parseToken(in.FixToken)
	} else {
		fix, err = v.raw(in)
	}
	if err != nil {
		return domain.GeoFix{}, err
	}

	if v.require && fix.Source != domain.GeoSourceDevice {
		return domain.GeoFix{}, &domain.ErrValidation{
			Field:   "geo.source",
			Message: fmt.Sprintf("a genuine device fix is required, got %q", fix.Source),
		}
	}
	return fix, nil
}

func (v *Verifier) raw(in *Input) (domain.GeoFix, error) {
	if in.Lat == nil {
		return domain.GeoFix{}, &domain.ErrValidation{Field: "geo.lat", Message: "required"}
	}
	if in.Lng == nil {
		return domain.GeoFix{}, &domain.ErrValidation{Field: "geo.lng", Message: "required"}
	}

	source := domain.GeoSource(in.Source)
	switch source {
	case "":
		source = domain.GeoSourceDevice
	case domain.GeoSourceDevice, domain.GeoSourceSimulated:
	default:
		return domain.GeoFix{}, &domain.ErrValidation{
			Field:   "geo.source",
			Message: fmt.Sprintf("expected device or simulated, got %q", in.Source),
		}
	}
	// Unsigned fixes cannot prove their origin once signing is enabled.
	if len(v.secret) > 0 {
		source = domain.GeoSourceSimulated
	}

	captured := in.CapturedAt
	if captured.IsZero() {
		captured = v.now()
	}
	return domain.GeoFix{
		Lat:            *in.Lat,
		Lng:            *in.Lng,
		AccuracyMeters: in.AccuracyMeters,
		CapturedAt:     captured,
		Source:         source,
	}, nil
}

func (v *Verifier) parseToken(raw string) (domain.GeoFix, error) {
	if len(v.secret) == 0 {
		return domain.GeoFix{}, &domain.ErrValidation{Field: "geo.fixToken", Message: "signed fixes are not enabled"}
	}

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now), jwt.WithIssuedAt())
	if err != nil {
		return domain.GeoFix{}, &domain.ErrValidation{Field: "geo.fixToken", Message: tokenMessage(err)}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.GeoFix{}, &domain.ErrValidation{Field: "geo.fixToken", Message: "invalid token"}
	}
	if claims.IssuedAt == nil {
		return domain.GeoFix{}, &domain.ErrValidation{Field: "geo.fixToken", Message: "missing iat"}
	}
	issued := claims.IssuedAt.Time
	if age := v.now().Sub(issued); age > v.maxAge {
		return domain.GeoFix{}, &domain.ErrValidation{
			Field:   "geo.fixToken",
			Message: fmt.Sprintf("fix is %s old, limit is %s", age.Round(time.Second), v.maxAge),
		}
	}

	return domain.GeoFix{
		Lat:            claims.Lat,
		Lng:            claims.Lng,
		AccuracyMeters: claims.Acc,
		CapturedAt:     issued,
		Source:         domain.GeoSourceDevice,
	}, nil
}

// Sign issues a fix token; used by device simulators and tests.
func (v *Verifier) Sign(fix domain.GeoFix) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("devicefix: no secret configured")
	}
	captured := fix.CapturedAt
	if captured.IsZero() {
		captured = v.now()
	}
	claims := Claims{
		Lat: fix.Lat,
		Lng: fix.Lng,
		Acc: fix.AccuracyMeters,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(captured),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func tokenMessage(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature mismatch"
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return "issued in the future"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed token"
	}
	return "invalid token"
}
