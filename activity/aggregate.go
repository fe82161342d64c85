/*
aggregate.go - Leaf-level metric aggregators

PURPOSE:
  Reduces raw behavioral records for one membership and one month window
  into the small statistics the score calculators consume. Each aggregator
  is independent and pure: records in, statistic out.

AGGREGATORS:
  EventParticipation: registered count, fractionally weighted attendance,
                      ratio clamped to [0,1]
  SessionAttendance:  totals + ratio; present and late both count as present
  StaffPerformance:   arithmetic mean of fixed grade scores, 0 if none
  PenaltySum:         sum of point deltas, always <= 0

WINDOW FILTERING:
  Every aggregator filters by the record's own date against the month
  window. Callers may pass wider slices; out-of-window records are ignored.
*/
package activity

import "github.com/shopspring/decimal"

var (
	weightFull    = decimal.NewFromInt(1)
	weightPartial = decimal.RequireFromString("0.5")

	gradeScores = map[EvaluationGrade]decimal.Decimal{
		GradePoor:      decimal.RequireFromString("0.25"),
		GradeAverage:   decimal.RequireFromString("0.50"),
		GradeGood:      decimal.RequireFromString("0.75"),
		GradeExcellent: decimal.NewFromInt(1),
	}
)

// =============================================================================
// EVENT PARTICIPATION
// =============================================================================

// EventStats is the output of the event participation aggregator.
type EventStats struct {
	Registered       int64
	AttendedWeighted decimal.Decimal
	Ratio            decimal.Decimal // [0,1], 0 when nothing registered
}

// EventParticipation scans registrations whose event date falls in the
// window. Full attendance contributes 1.0, partial 0.5, anything else 0.
func EventParticipation(regs []EventRegistration, w MonthWindow) EventStats {
	stats := EventStats{AttendedWeighted: decimal.Zero, Ratio: decimal.Zero}
	for _, r := range regs {
		if !w.Contains(r.EventDate) {
			continue
		}
		stats.Registered++
		switch r.Attendance {
		case AttendanceFull:
			stats.AttendedWeighted = stats.AttendedWeighted.Add(weightFull)
		case AttendancePartial:
			stats.AttendedWeighted = stats.AttendedWeighted.Add(weightPartial)
		}
	}
	if stats.Registered > 0 {
		stats.Ratio = clamp01(stats.AttendedWeighted.Div(decimal.NewFromInt(stats.Registered)))
	}
	return stats
}

// =============================================================================
// SESSION ATTENDANCE
// =============================================================================

// SessionStats is the output of the session attendance aggregator.
type SessionStats struct {
	Total   int64
	Present int64
	Ratio   decimal.Decimal // [0,1], 0 when no sessions
}

// SessionAttendance scans recurring-session records in the window.
// Late arrivals count as present.
func SessionAttendance(sessions []SessionRecord, w MonthWindow) SessionStats {
	stats := SessionStats{Ratio: decimal.Zero}
	for _, s := range sessions {
		if !w.Contains(s.At) {
			continue
		}
		stats.Total++
		if s.Status == SessionPresent || s.Status == SessionLate {
			stats.Present++
		}
	}
	if stats.Total > 0 {
		stats.Ratio = clamp01(decimal.NewFromInt(stats.Present).Div(decimal.NewFromInt(stats.Total)))
	}
	return stats
}

// =============================================================================
// STAFF PERFORMANCE
// =============================================================================

// StaffPerformance maps each in-window evaluation to its fixed score and
// returns the arithmetic mean, or 0 when no evaluations exist.
func StaffPerformance(evals []StaffEvaluation, w MonthWindow) decimal.Decimal {
	sum := decimal.Zero
	var n int64
	for _, e := range evals {
		if !w.Contains(e.EventDate) {
			continue
		}
		score, ok := gradeScores[e.Grade]
		if !ok {
			continue // unknown grade contributes nothing
		}
		sum = sum.Add(score)
		n++
	}
	if n == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(n))
}

// =============================================================================
// PENALTY SUM
// =============================================================================

// PenaltySum totals disciplinary point deltas in the window. Positive
// deltas never occur upstream, but the sum is capped at 0 regardless.
func PenaltySum(penalties []Penalty, w MonthWindow) int64 {
	var total int64
	for _, p := range penalties {
		if !w.Contains(p.At) {
			continue
		}
		total += p.Points
	}
	if total > 0 {
		total = 0
	}
	return total
}

// clamp01 bounds d to [0,1].
func clamp01(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(weightFull) {
		return weightFull
	}
	return d
}
