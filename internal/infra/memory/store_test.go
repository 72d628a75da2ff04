package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/memory"
)

func TestStore_UnknownOrganization(t *testing.T) {
	s := memory.NewStore("org-1")
	ctx := context.Background()

	var nf *domain.ErrNotFound
	if _, err := s.LoadSnapshot(ctx, "org-2"); !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SaveRecord(ctx, "org-2", &domain.AttendanceRecord{ID: "r"}); !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound on save, got %v", err)
	}

	s.AddOrganization("org-2")
	if _, err := s.LoadSnapshot(ctx, "org-2"); err != nil {
		t.Fatalf("expected org-2 after AddOrganization, got %v", err)
	}
}

func TestStore_RecordsKeepInsertionOrder(t *testing.T) {
	s := memory.NewStore("org-1")
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		rec := &domain.AttendanceRecord{ID: id, ShiftID: "shift-" + id, ProfessionalUserID: "prof", Status: domain.StatusPending}
		if err := s.SaveRecord(ctx, "org-1", rec); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	// Updating an existing key keeps its position.
	if err := s.SaveRecord(ctx, "org-1", &domain.AttendanceRecord{ID: "c", ShiftID: "shift-c", ProfessionalUserID: "prof", Status: domain.StatusCheckedIn}); err != nil {
		t.Fatalf("save: %v", err)
	}

	snap, err := s.LoadSnapshot(ctx, "org-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(snap.Records))
	}
	for i, want := range []string{"c", "a", "b"} {
		if snap.Records[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, snap.Records[i].ID)
		}
	}
	if snap.Records[0].Status != domain.StatusCheckedIn {
		t.Errorf("expected updated status, got %s", snap.Records[0].Status)
	}
}

func TestStore_CopiesOnReadAndWrite(t *testing.T) {
	s := memory.NewStore("org-1")
	ctx := context.Background()

	rec := &domain.AttendanceRecord{
		ID: "r1", ShiftID: "s1", ProfessionalUserID: "p1",
		StressSelfReport: &domain.StressSelfReport{Level: 2, Triggers: []domain.StressTrigger{domain.TriggerMissedBreak}},
	}
	if err := s.SaveRecord(ctx, "org-1", rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec.StressSelfReport.Level = 5
	rec.StressSelfReport.Triggers[0] = domain.TriggerSevereCases

	snap, _ := s.LoadSnapshot(ctx, "org-1")
	got := snap.Records[0].StressSelfReport
	if got.Level != 2 || got.Triggers[0] != domain.TriggerMissedBreak {
		t.Fatalf("store shares state with the caller: %+v", got)
	}

	got.Level = 4
	again, _ := s.LoadSnapshot(ctx, "org-1")
	if again.Records[0].StressSelfReport.Level != 2 {
		t.Error("snapshot shares state with the store")
	}
}

func TestStore_GeofencesAndCancellations(t *testing.T) {
	s := memory.NewStore("org-1")
	ctx := context.Background()

	if err := s.SaveGeofence(ctx, "org-1", &domain.Geofence{SectorID: "uti", RadiusMeters: 100}); err != nil {
		t.Fatalf("save geofence: %v", err)
	}
	if err := s.SaveGeofence(ctx, "org-1", &domain.Geofence{SectorID: "uti", RadiusMeters: 150}); err != nil {
		t.Fatalf("save geofence: %v", err)
	}
	if err := s.SaveCancellation(ctx, "org-1", &domain.CancellationEvent{ID: "c1", IsLastMinute: true}); err != nil {
		t.Fatalf("save cancellation: %v", err)
	}

	snap, _ := s.LoadSnapshot(ctx, "org-1")
	if len(snap.Geofences) != 1 || snap.Geofences["uti"].RadiusMeters != 150 {
		t.Errorf("unexpected geofences %+v", snap.Geofences)
	}
	if len(snap.Cancellations) != 1 || !snap.Cancellations[0].IsLastMinute {
		t.Errorf("unexpected cancellations %+v", snap.Cancellations)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("ping: %v", err)
	}
}
