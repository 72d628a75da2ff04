package client

import (
	"context"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
)

// StaticSchedule stands in when no scheduling API is configured. It
// returns the fixed assignments falling in the requested range.
type StaticSchedule struct {
	Assignments []domain.ShiftAssignment
	Location    *time.Location
}

// ListAssignments implements port.ScheduleProvider.
func (s StaticSchedule) ListAssignments(_ context.Context, _ string, from, to time.Time) ([]domain.ShiftAssignment, error) {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	out := make([]domain.ShiftAssignment, 0, len(s.Assignments))
	for _, a := range s.Assignments {
		day, err := time.ParseInLocation("2006-01-02 15:04", a.ShiftDate+" "+a.StartTime, loc)
		if err != nil || day.Before(from) || day.After(to) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// StaticRoster stands in when no roster API is configured.
type StaticRoster struct {
	Professionals []domain.Professional
}

// ListProfessionals implements port.RosterProvider.
func (s StaticRoster) ListProfessionals(context.Context, string) ([]domain.Professional, error) {
	return append([]domain.Professional(nil), s.Professionals...), nil
}
