package service

import (
	"math"
	"sort"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
)

const (
	timelineBuckets      = 10
	topTriggersOverall   = 6
	topTriggersPerPerson = 3
	highestRiskCheckouts = 8
	recentEvalNotes      = 8
)

// AnalyticsInput is the read-only view the aggregator works on.
type AnalyticsInput struct {
	OrganizationID string
	Records        []domain.AttendanceRecord
	Cancellations  []domain.CancellationEvent
	Roster         []domain.Professional
	Now            time.Time
}

// BuildManagerAnalytics rolls the ledger up into the manager snapshot.
// Empty input yields zero rates and empty rankings.
func BuildManagerAnalytics(in AnalyticsInput) *domain.AttendanceManagerAnalytics {
	names := rosterIndex(in.Roster)

	return &domain.AttendanceManagerAnalytics{
		OrganizationID:        in.OrganizationID,
		GeneratedAt:           in.Now,
		Totals:                buildTotals(in),
		LateRanking:           buildLateRanking(in.Records, names),
		StressRanking:         buildStressRanking(in.Records, names),
		RiskDistribution:      buildRiskDistribution(in.Records),
		StressTimeline:        buildStressTimeline(in.Records),
		TopTriggers:           countTriggers(in.Records, "", topTriggersOverall),
		HighestRiskCheckouts:  buildHighestRisk(in.Records, names),
		InstitutionEvaluation: buildEvaluationStats(in.Records, names),
	}
}

func buildTotals(in AnalyticsInput) domain.AttendanceTotals {
	t := domain.AttendanceTotals{
		Cancellations: len(in.Cancellations),
	}
	cancelled := cancelledKeys(in.Cancellations)

	var onTime, lateSum, overtimeSum, distN, stressScoreSum, stressLevelSum, stressN, highRisk int
	var distTotal float64
	for i := range in.Records {
		r := &in.Records[i]
		if supersededByCancellation(r, cancelled) {
			continue
		}
		t.Records++
		if !r.HasCheckIn() {
			continue
		}
		t.CheckedIn++
		lateSum += r.LateMinutes
		if r.OnTime {
			onTime++
		}
		if r.CheckIn != nil {
			distTotal += r.CheckIn.DistanceMeters
			distN++
		}
		if IsAbandonment(r, in.Now) {
			t.Abandonments++
		}
		if !r.HasCheckOut() {
			continue
		}
		t.CheckedOut++
		overtimeSum += r.OvertimeMinutes
		if r.StressAnalytics != nil && r.StressSelfReport != nil {
			stressN++
			stressScoreSum += r.StressAnalytics.Score
			stressLevelSum += r.StressSelfReport.Level
			if r.StressAnalytics.RiskLevel.IsHigh() {
				highRisk++
			}
		}
	}
	for i := range in.Cancellations {
		if in.Cancellations[i].IsLastMinute {
			t.LastMinuteCancellations++
		}
	}

	t.AttendanceRate = percent(t.CheckedIn, t.Records+t.Cancellations)
	t.CheckInRate = percent(t.CheckedIn, t.Records)
	t.CheckoutRate = percent(t.CheckedOut, t.CheckedIn)
	t.OnTimeRate = percent(onTime, t.CheckedIn)
	t.AbandonmentRate = percent(t.Abandonments, t.CheckedIn)
	t.LastMinuteCancellationRate = percent(t.LastMinuteCancellations, t.Cancellations)
	t.AvgLateMinutes = average(float64(lateSum), t.CheckedIn)
	t.AvgOvertimeMinutes = average(float64(overtimeSum), t.CheckedOut)
	t.AvgCheckInDistanceMeters = average(distTotal, distN)
	t.AvgStressScore = average(float64(stressScoreSum), stressN)
	t.AvgStressLevel = average(float64(stressLevelSum), stressN)
	t.HighRiskRate = percent(highRisk, stressN)
	return t
}

type lateAcc struct {
	entry    domain.LateRankingEntry
	lateSum  int
	distSum  float64
	distSeen int
}

func buildLateRanking(records []domain.AttendanceRecord, names map[string]domain.Professional) []domain.LateRankingEntry {
	byProf := make(map[string]*lateAcc)
	for i := range records {
		r := &records[i]
		if !r.HasCheckIn() {
			continue
		}
		acc, ok := byProf[r.ProfessionalUserID]
		if !ok {
			name, specialty := label(r, names)
			acc = &lateAcc{entry: domain.LateRankingEntry{
				ProfessionalUserID: r.ProfessionalUserID,
				ProfessionalName:   name,
				Specialty:          specialty,
			}}
			byProf[r.ProfessionalUserID] = acc
		}
		acc.entry.Records++
		if !r.OnTime {
			acc.entry.LateCount++
		}
		acc.lateSum += r.LateMinutes
		acc.entry.MaxLateMinutes = max(acc.entry.MaxLateMinutes, r.LateMinutes)
		if r.CheckIn != nil {
			acc.distSum += r.CheckIn.DistanceMeters
			acc.distSeen++
		}
	}

	out := make([]domain.LateRankingEntry, 0, len(byProf))
	for _, acc := range byProf {
		e := acc.entry
		e.LateRate = percent(e.LateCount, e.Records)
		e.AvgLateMinutes = average(float64(acc.lateSum), e.Records)
		e.AvgCheckInDistanceMeters = average(acc.distSum, acc.distSeen)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.AvgLateMinutes != b.AvgLateMinutes {
			return a.AvgLateMinutes > b.AvgLateMinutes
		}
		if a.LateRate != b.LateRate {
			return a.LateRate > b.LateRate
		}
		if a.MaxLateMinutes != b.MaxLateMinutes {
			return a.MaxLateMinutes > b.MaxLateMinutes
		}
		if a.ProfessionalName != b.ProfessionalName {
			return a.ProfessionalName < b.ProfessionalName
		}
		return a.ProfessionalUserID < b.ProfessionalUserID
	})
	return out
}

type stressAcc struct {
	entry    domain.StressRankingEntry
	scoreSum int
	levelSum int
}

func buildStressRanking(records []domain.AttendanceRecord, names map[string]domain.Professional) []domain.StressRankingEntry {
	byProf := make(map[string]*stressAcc)
	for i := range records {
		r := &records[i]
		if r.StressAnalytics == nil || r.StressSelfReport == nil {
			continue
		}
		acc, ok := byProf[r.ProfessionalUserID]
		if !ok {
			name, specialty := label(r, names)
			acc = &stressAcc{entry: domain.StressRankingEntry{
				ProfessionalUserID: r.ProfessionalUserID,
				ProfessionalName:   name,
				Specialty:          specialty,
			}}
			byProf[r.ProfessionalUserID] = acc
		}
		acc.entry.Checkouts++
		acc.scoreSum += r.StressAnalytics.Score
		acc.levelSum += r.StressSelfReport.Level
		if r.StressAnalytics.RiskLevel.IsHigh() {
			acc.entry.HighRiskCount++
		}
		if r.StressAnalytics.RiskLevel == domain.RiskCritical {
			acc.entry.CriticalCount++
		}
	}

	out := make([]domain.StressRankingEntry, 0, len(byProf))
	for id, acc := range byProf {
		e := acc.entry
		e.AvgStressScore = average(float64(acc.scoreSum), e.Checkouts)
		e.AvgStressLevel = average(float64(acc.levelSum), e.Checkouts)
		e.TopTriggers = []domain.StressTrigger{}
		for _, tc := range countTriggers(records, id, topTriggersPerPerson) {
			e.TopTriggers = append(e.TopTriggers, tc.Trigger)
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.AvgStressScore != b.AvgStressScore {
			return a.AvgStressScore > b.AvgStressScore
		}
		if a.HighRiskCount != b.HighRiskCount {
			return a.HighRiskCount > b.HighRiskCount
		}
		if a.ProfessionalName != b.ProfessionalName {
			return a.ProfessionalName < b.ProfessionalName
		}
		return a.ProfessionalUserID < b.ProfessionalUserID
	})
	return out
}

func buildRiskDistribution(records []domain.AttendanceRecord) domain.RiskDistribution {
	var d domain.RiskDistribution
	for i := range records {
		if a := records[i].StressAnalytics; a != nil {
			d.Add(a.RiskLevel)
		}
	}
	return d
}

type timelineAcc struct {
	bucket   domain.StressTimelineBucket
	scoreSum int
	levelSum int
}

// buildStressTimeline buckets scored check-outs by shift date and keeps
// the most recent buckets, oldest first.
func buildStressTimeline(records []domain.AttendanceRecord) []domain.StressTimelineBucket {
	byDate := make(map[string]*timelineAcc)
	for i := range records {
		r := &records[i]
		if r.StressAnalytics == nil || r.StressSelfReport == nil {
			continue
		}
		acc, ok := byDate[r.ShiftDate]
		if !ok {
			acc = &timelineAcc{bucket: domain.StressTimelineBucket{ShiftDate: r.ShiftDate}}
			byDate[r.ShiftDate] = acc
		}
		acc.bucket.Checkouts++
		acc.scoreSum += r.StressAnalytics.Score
		acc.levelSum += r.StressSelfReport.Level
		if r.StressAnalytics.RiskLevel.IsHigh() {
			acc.bucket.HighRiskCount++
		}
	}

	out := make([]domain.StressTimelineBucket, 0, len(byDate))
	for _, acc := range byDate {
		b := acc.bucket
		b.AvgStressScore = average(float64(acc.scoreSum), b.Checkouts)
		b.AvgStressLevel = average(float64(acc.levelSum), b.Checkouts)
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShiftDate < out[j].ShiftDate })
	if len(out) > timelineBuckets {
		out = out[len(out)-timelineBuckets:]
	}
	return out
}

// countTriggers ranks self-reported triggers by frequency, optionally for
// one professional only. Ties go to the trigger code.
func countTriggers(records []domain.AttendanceRecord, professionalUserID string, limit int) []domain.TriggerCount {
	counts := make(map[domain.StressTrigger]int)
	for i := range records {
		r := &records[i]
		if r.StressSelfReport == nil {
			continue
		}
		if professionalUserID != "" && r.ProfessionalUserID != professionalUserID {
			continue
		}
		for _, t := range r.StressSelfReport.Triggers {
			counts[t]++
		}
	}

	out := make([]domain.TriggerCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, domain.TriggerCount{Trigger: t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Trigger < out[j].Trigger
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func buildHighestRisk(records []domain.AttendanceRecord, names map[string]domain.Professional) []domain.HighRiskCheckout {
	out := make([]domain.HighRiskCheckout, 0)
	for i := range records {
		r := &records[i]
		if r.StressAnalytics == nil || r.CheckOutAt == nil {
			continue
		}
		name, _ := label(r, names)
		out = append(out, domain.HighRiskCheckout{
			ShiftID:            r.ShiftID,
			ProfessionalUserID: r.ProfessionalUserID,
			ProfessionalName:   name,
			SectorName:         r.SectorName,
			ShiftDate:          r.ShiftDate,
			CheckOutAt:         *r.CheckOutAt,
			Score:              r.StressAnalytics.Score,
			RiskLevel:          r.StressAnalytics.RiskLevel,
			DominantDrivers:    r.StressAnalytics.DominantDrivers,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].CheckOutAt.After(out[j].CheckOutAt)
	})
	if len(out) > highestRiskCheckouts {
		out = out[:highestRiskCheckouts]
	}
	return out
}

func buildEvaluationStats(records []domain.AttendanceRecord, names map[string]domain.Professional) domain.InstitutionEvaluationStats {
	var s domain.InstitutionEvaluationStats
	var org, vol, safety, structure, pay, team, overall float64
	notes := make([]domain.InstitutionEvalNote, 0)

	for i := range records {
		r := &records[i]
		e := r.InstitutionEvaluation
		if e == nil {
			continue
		}
		s.Evaluations++
		org += float64(e.Organization)
		vol += float64(e.PatientVolume)
		safety += float64(e.Safety)
		structure += float64(e.Structure)
		pay += float64(e.PaymentOnTime)
		team += float64(e.TeamEnvironment)
		overall += e.Average()

		if e.Note == "" || r.CheckOutAt == nil {
			continue
		}
		name, _ := label(r, names)
		notes = append(notes, domain.InstitutionEvalNote{
			ShiftID:          r.ShiftID,
			ProfessionalName: name,
			SectorName:       r.SectorName,
			ShiftDate:        r.ShiftDate,
			CheckOutAt:       *r.CheckOutAt,
			Average:          round1(e.Average()),
			Note:             e.Note,
		})
	}

	s.AvgOrganization = average(org, s.Evaluations)
	s.AvgPatientVolume = average(vol, s.Evaluations)
	s.AvgSafety = average(safety, s.Evaluations)
	s.AvgStructure = average(structure, s.Evaluations)
	s.AvgPaymentOnTime = average(pay, s.Evaluations)
	s.AvgTeamEnvironment = average(team, s.Evaluations)
	s.OverallAverage = average(overall, s.Evaluations)

	sort.SliceStable(notes, func(i, j int) bool { return notes[i].CheckOutAt.After(notes[j].CheckOutAt) })
	if len(notes) > recentEvalNotes {
		notes = notes[:recentEvalNotes]
	}
	s.RecentNotes = notes
	return s
}

func rosterIndex(roster []domain.Professional) map[string]domain.Professional {
	idx := make(map[string]domain.Professional, len(roster))
	for _, p := range roster {
		idx[p.UserID] = p
	}
	return idx
}

// label prefers the roster's display name and specialty over the values
// captured on the record.
func label(r *domain.AttendanceRecord, names map[string]domain.Professional) (string, string) {
	name, specialty := r.ProfessionalName, r.Specialty
	if p, ok := names[r.ProfessionalUserID]; ok {
		if p.Name != "" {
			name = p.Name
		}
		if p.Specialty != "" {
			specialty = p.Specialty
		}
	}
	return name, specialty
}

func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return round1(float64(n) / float64(d) * 100)
}

func average(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return round1(sum / float64(n))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
