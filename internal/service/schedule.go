package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
)

const shiftDateLayout = "2006-01-02"

// ScheduleWindow turns a shift date and HH:mm bounds into instants in loc.
// When end <= start the end rolls to the next calendar day.
func ScheduleWindow(shiftDate, startTime, endTime string, loc *time.Location) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(shiftDateLayout, shiftDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, &domain.ErrValidation{Field: "shiftDate", Message: fmt.Sprintf("expected YYYY-MM-DD, got %q", shiftDate)}
	}
	startMin, err := parseClock(startTime)
	if err != nil {
		return time.Time{}, time.Time{}, &domain.ErrValidation{Field: "startTime", Message: err.Error()}
	}
	endMin, err := parseClock(endTime)
	if err != nil {
		return time.Time{}, time.Time{}, &domain.ErrValidation{Field: "endTime", Message: err.Error()}
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), startMin/60, startMin%60, 0, 0, loc)
	endDay := day
	if endMin <= startMin {
		endDay = day.AddDate(0, 0, 1)
	}
	end := time.Date(endDay.Year(), endDay.Month(), endDay.Day(), endMin/60, endMin%60, 0, 0, loc)
	return start, end, nil
}

// parseClock parses HH:mm into minutes after midnight.
func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:mm, got %q", s)
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("expected HH:mm, got %q", s)
	}
	return h*60 + m, nil
}

// IsNightShift reports a window that crosses midnight, starts at or after
// 18:00, starts before 06:00, or ends at or before 08:00.
func IsNightShift(startTime, endTime string) bool {
	start, err := parseClock(startTime)
	if err != nil {
		return false
	}
	end, err := parseClock(endTime)
	if err != nil {
		return false
	}
	switch {
	case end <= start:
		return true
	case start >= 18*60:
		return true
	case start < 6*60:
		return true
	case end <= 8*60:
		return true
	}
	return false
}

// minutesBetween returns (to - from) in whole minutes, rounded.
func minutesBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Minutes()))
}

func fmtOutOfRange(v, lo, hi float64) string {
	if math.IsInf(hi, 1) {
		return fmt.Sprintf("must be >= %g, got %g", lo, v)
	}
	return fmt.Sprintf("must be between %g and %g, got %g", lo, hi, v)
}
