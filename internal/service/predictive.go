package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
	"github.com/boddenberg/plantao-presenca-go/internal/port"
)

// ModelDisclaimer accompanies every predictive report.
const ModelDisclaimer = "Heuristic risk score with hand-tuned weights; not a statistically fitted model. " +
	"Every point is traceable to a named factor. The commute term uses a placeholder estimate."

const (
	riskBase            = 6.0
	riskMin             = 3.0
	riskMax             = 92.0
	maxRiskFactors      = 4
	topRiskShiftsLimit  = 10
	commuteFactorKm     = 15.0
	distanceFactorMeter = 120.0
	stableHistoryFactor = "stable recent history"
)

// Risk term names.
const (
	TermBase              = "base"
	TermAbandonmentRate   = "abandonmentRate"
	TermNoCheckInRate     = "noCheckInRate"
	TermLateRate          = "lateRate"
	TermAvgLate           = "avgLateMinutes"
	TermLastMinuteCancels = "lastMinuteCancelRate"
	TermLoad14d           = "shiftsTrailing14d"
	TermLoad7d            = "shiftsTrailing7d"
	TermCommute           = "estimatedCommute"
	TermNightShift        = "nightShift"
	TermCheckInDistance   = "checkInDistance"
	TermOnTimeHistory     = "onTimeHistory"
	TermCompletedHistory  = "completedHistory"
)

// PredictiveInput is the read-only view the risk engine works on.
type PredictiveInput struct {
	OrganizationID string
	Records        []domain.AttendanceRecord
	Cancellations  []domain.CancellationEvent
	Roster         []domain.Professional
	Upcoming       []domain.ShiftAssignment
	Now            time.Time
	Location       *time.Location
	Commute        port.CommuteEstimator
}

type upcomingShift struct {
	assignment domain.ShiftAssignment
	start      time.Time
	end        time.Time
}

// PredictRisk scores every upcoming assignment (start strictly after Now)
// with the hand-weighted failure-risk heuristic. Assignments with an
// unparseable schedule are skipped; a professional without history still
// gets the base score.
func PredictRisk(in PredictiveInput) *domain.PredictiveRiskReport {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	commute := in.Commute
	if commute == nil {
		commute = HashCommuteEstimator{}
	}
	names := rosterIndex(in.Roster)

	upcoming := make([]upcomingShift, 0, len(in.Upcoming))
	for _, a := range in.Upcoming {
		start, end, err := ScheduleWindow(a.ShiftDate, a.StartTime, a.EndTime, loc)
		if err != nil || !start.After(in.Now) {
			continue
		}
		upcoming = append(upcoming, upcomingShift{assignment: a, start: start, end: end})
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		if !upcoming[i].start.Equal(upcoming[j].start) {
			return upcoming[i].start.Before(upcoming[j].start)
		}
		return upcoming[i].assignment.ShiftID < upcoming[j].assignment.ShiftID
	})

	report := &domain.PredictiveRiskReport{
		OrganizationID:  in.OrganizationID,
		GeneratedAt:     in.Now,
		Shifts:          make([]domain.ShiftRiskPrediction, 0, len(upcoming)),
		TopRiskShifts:   []domain.ShiftRiskPrediction{},
		ByProfessional:  []domain.ProfessionalRiskSummary{},
		ModelDisclaimer: ModelDisclaimer,
	}

	var riskSum float64
	for _, u := range upcoming {
		p := predictShift(in, u, upcoming, commute, names)
		report.Shifts = append(report.Shifts, p)
		report.BandCounts.Add(p.Band)
		riskSum += p.Risk
	}
	report.UpcomingShifts = len(report.Shifts)
	if report.UpcomingShifts > 0 {
		report.AvgRisk = round1(riskSum / float64(report.UpcomingShifts))
	}

	report.TopRiskShifts = topRiskShifts(report.Shifts, topRiskShiftsLimit)
	report.ByProfessional = summarizeByProfessional(report.Shifts)
	return report
}

// riskSignalsFor gathers the historical inputs of one professional.
func riskSignalsFor(in PredictiveInput, professionalUserID string) domain.RiskSignals {
	var s domain.RiskSignals
	var checkedIn, abandoned, lateSum, distN int
	var distSum float64

	var events []domain.CancellationEvent
	for _, e := range in.Cancellations {
		if e.ProfessionalUserID == professionalUserID && !e.CancelledAt.After(in.Now) {
			events = append(events, e)
		}
	}
	cancelled := cancelledKeys(events)

	for i := range in.Records {
		r := &in.Records[i]
		if r.ProfessionalUserID != professionalUserID || r.ScheduledStartAt.After(in.Now) {
			continue
		}
		if supersededByCancellation(r, cancelled) {
			continue
		}
		s.HistoricalRecords++
		if !r.HasCheckIn() {
			continue
		}
		checkedIn++
		lateSum += r.LateMinutes
		if r.OnTime {
			s.OnTimeCheckIns++
		}
		if IsAbandonment(r, in.Now) {
			abandoned++
		}
		if IsInstitutionCompleted(r) {
			s.InstitutionCompleted++
		}
		if r.CheckIn != nil {
			distSum += r.CheckIn.DistanceMeters
			distN++
		}
	}

	cancellations := len(events)
	for i := range events {
		if IsLastMinuteCancellation(&events[i]) {
			s.LastMinuteCancellations++
		}
	}

	s.AbandonmentRatePct = ratioPct(abandoned, checkedIn)
	s.NoCheckInRatePct = ratioPct(s.HistoricalRecords-checkedIn, s.HistoricalRecords)
	s.LateRatePct = ratioPct(checkedIn-s.OnTimeCheckIns, checkedIn)
	if checkedIn > 0 {
		s.AvgLateMinutes = float64(lateSum) / float64(checkedIn)
	}
	s.LastMinuteCancelRatePct = ratioPct(s.LastMinuteCancellations, s.HistoricalRecords+cancellations)
	if distN > 0 {
		s.AvgCheckInDistanceMeters = distSum / float64(distN)
	}
	return s
}

// trailingShifts counts the professional's shifts starting in
// [start-window, start), from the ledger and the other upcoming
// assignments, each shift id once.
func trailingShifts(in PredictiveInput, u upcomingShift, upcoming []upcomingShift, window time.Duration) int {
	from := u.start.Add(-window)
	prof := u.assignment.Professional.UserID
	seen := make(map[string]bool)

	inWindow := func(t time.Time) bool { return !t.Before(from) && t.Before(u.start) }

	for i := range in.Records {
		r := &in.Records[i]
		if r.ProfessionalUserID == prof && r.ShiftID != u.assignment.ShiftID && inWindow(r.ScheduledStartAt) {
			seen[r.ShiftID] = true
		}
	}
	for _, other := range upcoming {
		a := other.assignment
		if a.Professional.UserID == prof && a.ShiftID != u.assignment.ShiftID && inWindow(other.start) {
			seen[a.ShiftID] = true
		}
	}
	return len(seen)
}

func predictShift(in PredictiveInput, u upcomingShift, upcoming []upcomingShift, commute port.CommuteEstimator, names map[string]domain.Professional) domain.ShiftRiskPrediction {
	a := u.assignment
	s := riskSignalsFor(in, a.Professional.UserID)
	s.ShiftsTrailing14d = trailingShifts(in, u, upcoming, 14*24*time.Hour)
	s.ShiftsTrailing7d = trailingShifts(in, u, upcoming, 7*24*time.Hour)
	s.EstimatedCommuteKm = commute.EstimateKm(a.Professional.UserID, a.SectorName)
	s.NightShift = IsNightShift(a.StartTime, a.EndTime)

	contributions := riskContributions(s)
	total := 0.0
	for _, c := range contributions {
		total += c.Points
	}
	risk := clampFloat(round1(total), riskMin, riskMax)

	name := a.Professional.Name
	if p, ok := names[a.Professional.UserID]; ok && p.Name != "" {
		name = p.Name
	}

	s.AbandonmentRatePct = round1(s.AbandonmentRatePct)
	s.NoCheckInRatePct = round1(s.NoCheckInRatePct)
	s.LateRatePct = round1(s.LateRatePct)
	s.AvgLateMinutes = round1(s.AvgLateMinutes)
	s.LastMinuteCancelRatePct = round1(s.LastMinuteCancelRatePct)
	s.AvgCheckInDistanceMeters = round1(s.AvgCheckInDistanceMeters)

	return domain.ShiftRiskPrediction{
		ShiftID:            a.ShiftID,
		ProfessionalUserID: a.Professional.UserID,
		ProfessionalName:   name,
		SectorName:         a.SectorName,
		ShiftDate:          a.ShiftDate,
		StartTime:          a.StartTime,
		EndTime:            a.EndTime,
		ScheduledStartAt:   u.start,
		Risk:               risk,
		Band:               PredictiveRiskBand(risk),
		Factors:            riskFactors(s, contributions),
		Contributions:      contributions,
		Signals:            s,
	}
}

// riskContributions expands the formula into its non-zero terms, base
// first.
func riskContributions(s domain.RiskSignals) []domain.RiskContribution {
	terms := []domain.RiskContribution{
		{Factor: TermBase, Points: riskBase},
		{Factor: TermAbandonmentRate, Points: s.AbandonmentRatePct * 0.22},
		{Factor: TermNoCheckInRate, Points: s.NoCheckInRatePct * 0.16},
		{Factor: TermLateRate, Points: s.LateRatePct * 0.08},
		{Factor: TermAvgLate, Points: s.AvgLateMinutes * 0.35},
		{Factor: TermLastMinuteCancels, Points: s.LastMinuteCancelRatePct * 0.12},
		{Factor: TermLoad14d, Points: float64(s.ShiftsTrailing14d) * 1.1},
		{Factor: TermLoad7d, Points: float64(max(0, s.ShiftsTrailing7d-2)) * 1.4},
		{Factor: TermCommute, Points: s.EstimatedCommuteKm * 0.28},
	}
	if s.NightShift {
		terms = append(terms, domain.RiskContribution{Factor: TermNightShift, Points: 4})
	}
	if s.AvgCheckInDistanceMeters > distanceFactorMeter {
		terms = append(terms, domain.RiskContribution{Factor: TermCheckInDistance, Points: 3})
	}
	if s.OnTimeCheckIns >= 6 {
		terms = append(terms, domain.RiskContribution{Factor: TermOnTimeHistory, Points: -4})
	}
	if s.InstitutionCompleted >= 8 {
		terms = append(terms, domain.RiskContribution{Factor: TermCompletedHistory, Points: -3})
	}

	out := terms[:0]
	for _, t := range terms {
		if t.Points != 0 {
			out = append(out, t)
		}
	}
	return out
}

// riskFactors names the conditions that fired, highest contribution
// first, at most four.
func riskFactors(s domain.RiskSignals, contributions []domain.RiskContribution) []string {
	points := make(map[string]float64, len(contributions))
	for _, c := range contributions {
		points[c.Factor] = c.Points
	}

	type fired struct {
		term string
		text string
	}
	var all []fired
	add := func(cond bool, term, text string) {
		if cond {
			all = append(all, fired{term: term, text: text})
		}
	}
	add(s.AbandonmentRatePct > 0, TermAbandonmentRate, fmt.Sprintf("abandonment rate: %.1f%%", s.AbandonmentRatePct))
	add(s.NoCheckInRatePct > 0, TermNoCheckInRate, fmt.Sprintf("shifts without check-in: %.1f%%", s.NoCheckInRatePct))
	add(s.LateRatePct > 0, TermLateRate, fmt.Sprintf("late check-in rate: %.1f%%", s.LateRatePct))
	add(s.AvgLateMinutes > 0, TermAvgLate, fmt.Sprintf("average lateness: %.1f min", s.AvgLateMinutes))
	add(s.LastMinuteCancellations > 0, TermLastMinuteCancels, fmt.Sprintf("last-minute cancellations: %d", s.LastMinuteCancellations))
	add(s.ShiftsTrailing14d >= 5, TermLoad14d, fmt.Sprintf("shifts in the previous 14 days: %d", s.ShiftsTrailing14d))
	add(s.ShiftsTrailing7d > 2, TermLoad7d, fmt.Sprintf("shifts in the previous 7 days: %d", s.ShiftsTrailing7d))
	add(s.EstimatedCommuteKm >= commuteFactorKm, TermCommute, fmt.Sprintf("estimated commute: %.1f km", s.EstimatedCommuteKm))
	add(s.NightShift, TermNightShift, "night shift")
	add(s.AvgCheckInDistanceMeters > distanceFactorMeter, TermCheckInDistance, fmt.Sprintf("average check-in distance: %.0f m", s.AvgCheckInDistanceMeters))

	if len(all) == 0 {
		return []string{stableHistoryFactor}
	}
	sort.SliceStable(all, func(i, j int) bool { return points[all[i].term] > points[all[j].term] })
	if len(all) > maxRiskFactors {
		all = all[:maxRiskFactors]
	}
	out := make([]string, len(all))
	for i, f := range all {
		out[i] = f.text
	}
	return out
}

// PredictiveRiskBand bands a predictive risk; each band includes its
// lower bound.
func PredictiveRiskBand(risk float64) domain.RiskLevel {
	switch {
	case risk >= 35:
		return domain.RiskCritical
	case risk >= 22:
		return domain.RiskHigh
	case risk >= 12:
		return domain.RiskModerate
	}
	return domain.RiskLow
}

func topRiskShifts(shifts []domain.ShiftRiskPrediction, limit int) []domain.ShiftRiskPrediction {
	out := append([]domain.ShiftRiskPrediction(nil), shifts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Risk > out[j].Risk })
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []domain.ShiftRiskPrediction{}
	}
	return out
}

func summarizeByProfessional(shifts []domain.ShiftRiskPrediction) []domain.ProfessionalRiskSummary {
	idx := make(map[string]int)
	sums := make(map[string]float64)
	out := make([]domain.ProfessionalRiskSummary, 0)

	for _, p := range shifts {
		i, ok := idx[p.ProfessionalUserID]
		if !ok {
			i = len(out)
			idx[p.ProfessionalUserID] = i
			out = append(out, domain.ProfessionalRiskSummary{
				ProfessionalUserID: p.ProfessionalUserID,
				ProfessionalName:   p.ProfessionalName,
			})
		}
		sums[p.ProfessionalUserID] += p.Risk
		out[i].UpcomingShifts++
		if p.Risk > out[i].MaxRisk {
			out[i].MaxRisk = p.Risk
		}
	}
	for i := range out {
		out[i].AvgRisk = round1(sums[out[i].ProfessionalUserID] / float64(out[i].UpcomingShifts))
		out[i].MaxBand = PredictiveRiskBand(out[i].MaxRisk)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MaxRisk != out[j].MaxRisk {
			return out[i].MaxRisk > out[j].MaxRisk
		}
		return out[i].AvgRisk > out[j].AvgRisk
	})
	return out
}

func ratioPct(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d) * 100
}
