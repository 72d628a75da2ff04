package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/client"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/resilience"
)

var testCfg = resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxConcurrency: 4}

func TestScheduleClient_ListAssignments(t *testing.T) {
	var gotFrom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/orgs/org-1/assignments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotFrom = r.URL.Query().Get("from")
		json.NewEncoder(w).Encode([]domain.ShiftAssignment{{ShiftID: "s-1", SectorName: "UTI"}})
	}))
	defer srv.Close()

	c := client.NewScheduleClient(srv.Client(), srv.URL, resilience.NewCircuitBreaker("schedule-test"), testCfg)
	from := time.Date(2026, 2, 10, 7, 0, 0, 0, time.UTC)
	got, err := c.ListAssignments(context.Background(), "org-1", from, from.Add(time.Hour))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 1 || got[0].ShiftID != "s-1" {
		t.Errorf("unexpected assignments %+v", got)
	}
	if gotFrom != from.Format(time.RFC3339) {
		t.Errorf("unexpected from param %q", gotFrom)
	}
}

func TestScheduleClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := client.NewScheduleClient(srv.Client(), srv.URL, resilience.NewCircuitBreaker("schedule-retry"), testCfg)
	got, err := c.ListAssignments(context.Background(), "org-1", time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestRosterClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := client.NewRosterClient(srv.Client(), srv.URL, resilience.NewCircuitBreaker("roster-test"), testCfg)
	_, err := c.ListProfessionals(context.Background(), "org-1")

	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) || ext.Service != "roster" {
		t.Fatalf("expected roster ErrExternalService, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call for a 4xx, got %d", calls.Load())
	}
}

func TestRosterClient_ListProfessionals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]domain.Professional{{UserID: "p-1", Name: "Ana"}})
	}))
	defer srv.Close()

	c := client.NewRosterClient(srv.Client(), srv.URL, resilience.NewCircuitBreaker("roster-ok"), testCfg)
	got, err := c.ListProfessionals(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 1 || got[0].Name != "Ana" {
		t.Errorf("unexpected roster %+v", got)
	}
}

func TestStaticSchedule_FiltersByRange(t *testing.T) {
	s := client.StaticSchedule{
		Location: time.UTC,
		Assignments: []domain.ShiftAssignment{
			{ShiftID: "in", ShiftDate: "2026-02-10", StartTime: "07:00"},
			{ShiftID: "out", ShiftDate: "2026-02-20", StartTime: "07:00"},
			{ShiftID: "bad", ShiftDate: "10/02", StartTime: "07:00"},
		},
	}
	from := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	got, err := s.ListAssignments(context.Background(), "org-1", from, from.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 1 || got[0].ShiftID != "in" {
		t.Errorf("unexpected assignments %+v", got)
	}
}
