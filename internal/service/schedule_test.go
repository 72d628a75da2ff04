package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
	"github.com/boddenberg/plantao-presenca-go/internal/service"
)

func assertValidation(t *testing.T, err error, field string) {
	t.Helper()
	var v *domain.ErrValidation
	if !errors.As(err, &v) {
		t.Fatalf("expected ErrValidation on %s, got %v", field, err)
	}
	if v.Field != field {
		t.Errorf("expected field %q, got %q (%s)", field, v.Field, v.Message)
	}
}

func TestScheduleWindow_DayShift(t *testing.T) {
	start, end, err := service.ScheduleWindow("2026-02-10", "07:00", "19:00", brt)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !start.Equal(time.Date(2026, 2, 10, 7, 0, 0, 0, brt)) {
		t.Errorf("unexpected start %v", start)
	}
	if !end.Equal(time.Date(2026, 2, 10, 19, 0, 0, 0, brt)) {
		t.Errorf("unexpected end %v", end)
	}
}

func TestScheduleWindow_OvernightRollsToNextDay(t *testing.T) {
	start, end, err := service.ScheduleWindow("2026-02-10", "22:00", "06:00", brt)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !start.Equal(time.Date(2026, 2, 10, 22, 0, 0, 0, brt)) {
		t.Errorf("unexpected start %v", start)
	}
	if !end.Equal(time.Date(2026, 2, 11, 6, 0, 0, 0, brt)) {
		t.Errorf("unexpected end %v", end)
	}
	if !end.After(start) {
		t.Error("expected end after start")
	}
}

func TestScheduleWindow_EqualBoundsIsFullDay(t *testing.T) {
	start, end, err := service.ScheduleWindow("2026-02-10", "07:00", "07:00", brt)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if end.Sub(start) != 24*time.Hour {
		t.Errorf("expected a 24h window, got %v", end.Sub(start))
	}
}

func TestScheduleWindow_Invalid(t *testing.T) {
	_, _, err := service.ScheduleWindow("10/02/2026", "07:00", "19:00", brt)
	assertValidation(t, err, "shiftDate")

	_, _, err = service.ScheduleWindow("2026-02-10", "7h", "19:00", brt)
	assertValidation(t, err, "startTime")

	_, _, err = service.ScheduleWindow("2026-02-10", "07:00", "24:00", brt)
	assertValidation(t, err, "endTime")
}

func TestIsNightShift(t *testing.T) {
	tests := []struct {
		start, end string
		want       bool
	}{
		{"07:00", "19:00", false},
		{"19:00", "07:00", true},
		{"22:00", "06:00", true},
		{"18:00", "23:00", true},
		{"05:30", "12:00", true},
		{"00:00", "08:00", true},
		{"08:00", "14:00", false},
		{"bad", "14:00", false},
	}
	for _, tt := range tests {
		if got := service.IsNightShift(tt.start, tt.end); got != tt.want {
			t.Errorf("IsNightShift(%s, %s) = %v, want %v", tt.start, tt.end, got, tt.want)
		}
	}
}
