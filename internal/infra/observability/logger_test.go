package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/boddenberg/plantao-presenca-go/internal/infra/observability"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func serveWithAccessLog(t *testing.T, h http.HandlerFunc) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	mw := observability.AccessLogMiddleware(zap.New(core))
	mw(h).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/orgs/org-1/cancellations", nil))
	return logs
}

func TestAccessLog_AnnotatedFields(t *testing.T) {
	logs := serveWithAccessLog(t, func(w http.ResponseWriter, r *http.Request) {
		observability.AnnotateRequest(r.Context(), zap.String("organization_id", "org-1"))
		observability.AnnotateRequest(r.Context(),
			zap.String("shift_id", "shift-9"),
			zap.String("professional_id", "prof-3"),
		)
		w.WriteHeader(http.StatusCreated)
	})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Level != zapcore.InfoLevel {
		t.Errorf("expected info level, got %s", e.Level)
	}
	fields := e.ContextMap()
	for k, want := range map[string]string{
		"organization_id": "org-1",
		"shift_id":        "shift-9",
		"professional_id": "prof-3",
		"method":          http.MethodPost,
		"path":            "/v1/orgs/org-1/cancellations",
	} {
		if fields[k] != want {
			t.Errorf("%s: expected %q, got %v", k, want, fields[k])
		}
	}
	if fields["status"] != int64(http.StatusCreated) {
		t.Errorf("expected status 201, got %v", fields["status"])
	}
}

func TestAccessLog_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		want   zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusConflict, zapcore.WarnLevel},
		{http.StatusServiceUnavailable, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		logs := serveWithAccessLog(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		})
		if got := logs.All(); len(got) != 1 || got[0].Level != tt.want {
			t.Errorf("status %d: expected one %s entry, got %+v", tt.status, tt.want, got)
		}
	}
}

func TestAnnotateRequest_WithoutAccessLog(t *testing.T) {
	// No carrier in the context: must not panic.
	observability.AnnotateRequest(context.Background(), zap.String("organization_id", "org-1"))
}

func TestNewLogger_Levels(t *testing.T) {
	if l := observability.NewLogger("warn"); l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("warn logger should not emit info")
	}
	if l := observability.NewLogger("debug"); !l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug logger should emit debug")
	}
	if l := observability.NewLogger("nonsense"); !l.Core().Enabled(zapcore.InfoLevel) || l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("unknown level should fall back to info")
	}
}
