package devicefix_test

import (
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/devicefix"
)

func ptr(v float64) *float64 { return &v }

func clockAt(t time.Time) func() time.Time { return func() time.Time { return t } }

func assertField(t *testing.T, err error, field string) {
	t.Helper()
	var v *domain.ErrValidation
	if !errors.As(err, &v) {
		t.Fatalf("expected ErrValidation on %s, got %v", field, err)
	}
	if v.Field != field {
		t.Errorf("expected field %s, got %s (%s)", field, v.Field, v.Message)
	}
}

func TestResolve_RawFixWithoutSecret(t *testing.T) {
	now := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	v := devicefix.NewVerifier("", false, clockAt(now))

	fix, err := v.Resolve(&devicefix.Input{Lat: ptr(-23.5), Lng: ptr(-46.6), AccuracyMeters: 12})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fix.Source != domain.GeoSourceDevice || !fix.CapturedAt.Equal(now) || fix.AccuracyMeters != 12 {
		t.Errorf("unexpected fix %+v", fix)
	}

	fix, err = v.Resolve(&devicefix.Input{Lat: ptr(0), Lng: ptr(0), Source: "simulated"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fix.Source != domain.GeoSourceSimulated {
		t.Errorf("expected simulated source, got %s", fix.Source)
	}
}

func TestResolve_RawValidation(t *testing.T) {
	v := devicefix.NewVerifier("", false, nil)

	_, err := v.Resolve(nil)
	assertField(t, err, "geo")

	_, err = v.Resolve(&devicefix.Input{Lng: ptr(1)})
	assertField(t, err, "geo.lat")

	_, err = v.Resolve(&devicefix.Input{Lat: ptr(1), Lng: ptr(1), Source: "gps"})
	assertField(t, err, "geo.source")

	_, err = v.Resolve(&devicefix.Input{FixToken: "abc"})
	assertField(t, err, "geo.fixToken")
}

func TestResolve_SignedToken(t *testing.T) {
	now := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	v := devicefix.NewVerifier("s3cret", true, clockAt(now))

	token, err := v.Sign(domain.GeoFix{Lat: -23.55, Lng: -46.63, AccuracyMeters: 7})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	fix, err := v.Resolve(&devicefix.Input{FixToken: token})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fix.Source != domain.GeoSourceDevice || fix.Lat != -23.55 || fix.AccuracyMeters != 7 {
		t.Errorf("unexpected fix %+v", fix)
	}
}

func TestResolve_RequireDeviceRejectsRawWhenSigning(t *testing.T) {
	v := devicefix.NewVerifier("s3cret", true, nil)
	_, err := v.Resolve(&devicefix.Input{Lat: ptr(1), Lng: ptr(1)})
	assertField(t, err, "geo.source")
}

func TestResolve_TokenProblems(t *testing.T) {
	now := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	v := devicefix.NewVerifier("s3cret", false, clockAt(now))

	old, err := v.Sign(domain.GeoFix{Lat: 1, Lng: 1, CapturedAt: now.Add(-11 * time.Minute)})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = v.Resolve(&devicefix.Input{FixToken: old})
	assertField(t, err, "geo.fixToken")

	other := devicefix.NewVerifier("other", false, clockAt(now))
	forged, _ := other.Sign(domain.GeoFix{Lat: 1, Lng: 1})
	_, err = v.Resolve(&devicefix.Input{FixToken: forged})
	assertField(t, err, "geo.fixToken")

	_, err = v.Resolve(&devicefix.Input{FixToken: "not.a.jwt"})
	assertField(t, err, "geo.fixToken")
}

func TestSign_WithoutSecret(t *testing.T) {
	if _, err := devicefix.NewVerifier("", false, nil).Sign(domain.GeoFix{}); err == nil {
		t.Error("expected an error without a secret")
	}
}
