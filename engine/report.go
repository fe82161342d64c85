/*
report.go - Ranking/trend read paths

PURPOSE:
  Pure read-side projections over stored monthly records. No writes, no
  locks. Missing periods yield empty collections, never errors.

PATHS:
  Ranking:           club rows for a period, finalScore descending
  Trending:          month-over-month delta per club, diff descending
  History:           one point per month of a year where a row exists
  Compare:           side-by-side stored fields of two clubs
  EventContribution: heuristic per-event weight, descending - an
                     attribution aid, not a causal decomposition
*/
package engine

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clubhub/activity-engine/activity"
)

// Ranking returns all club rows for the period, sorted by final score
// descending; ties order by club id for a stable listing.
func (e *Engine) Ranking(ctx context.Context, year, month int) ([]activity.ClubMonthlyActivity, error) {
	if err := activity.ValidateWindow(year, month); err != nil {
		return nil, err
	}
	rows, err := e.Store.ClubRecords(ctx, year, time.Month(month))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].FinalScore.Cmp(rows[j].FinalScore); c != 0 {
			return c > 0
		}
		return rows[i].ClubID < rows[j].ClubID
	})
	return rows, nil
}

// TrendEntry is one club's month-over-month movement.
type TrendEntry struct {
	ClubID        activity.ClubID
	Current       decimal.Decimal
	Previous      decimal.Decimal
	Diff          decimal.Decimal
	PercentGrowth decimal.Decimal // 100 when no prior row or prior score 0
}

// Trending computes each club's delta against the previous month, sorted
// by diff descending.
func (e *Engine) Trending(ctx context.Context, year, month int) ([]TrendEntry, error) {
	if err := activity.ValidateWindow(year, month); err != nil {
		return nil, err
	}
	w := activity.NewMonthWindow(year, time.Month(month))
	prev := w.Prev()

	rows, err := e.Store.ClubRecords(ctx, w.Year, w.Month)
	if err != nil {
		return nil, err
	}

	entries := make([]TrendEntry, 0, len(rows))
	for _, row := range rows {
		entry := TrendEntry{ClubID: row.ClubID, Current: row.FinalScore}

		prevRec, err := e.Store.ClubRecord(ctx, row.ClubID, prev.Year, prev.Month)
		if err != nil && !activity.IsNotFound(err) {
			return nil, err
		}
		if prevRec != nil {
			entry.Previous = prevRec.FinalScore
		}

		entry.Diff = entry.Current.Sub(entry.Previous)
		if entry.Previous.IsZero() {
			entry.PercentGrowth = hundredPercent
		} else {
			entry.PercentGrowth = entry.Diff.Div(entry.Previous).Mul(hundredPercent).Round(2)
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if c := entries[i].Diff.Cmp(entries[j].Diff); c != 0 {
			return c > 0
		}
		return entries[i].ClubID < entries[j].ClubID
	})
	return entries, nil
}

var hundredPercent = decimal.NewFromInt(100)

// History returns the club's rows for a year, one per month where a row
// exists, in month order.
func (e *Engine) History(ctx context.Context, clubID activity.ClubID, year int) ([]activity.ClubMonthlyActivity, error) {
	if err := activity.ValidateWindow(year, 1); err != nil {
		return nil, err
	}
	rows, err := e.Store.ClubRecordsForYear(ctx, clubID, year)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Month < rows[j].Month })
	return rows, nil
}

// Comparison pairs two clubs' stored rows for the same period. Either
// side is nil when that club has no row.
type Comparison struct {
	A *activity.ClubMonthlyActivity
	B *activity.ClubMonthlyActivity
}

// Compare returns both clubs' stored fields side by side.
func (e *Engine) Compare(ctx context.Context, a, b activity.ClubID, year, month int) (*Comparison, error) {
	if err := activity.ValidateWindow(year, month); err != nil {
		return nil, err
	}
	mo := time.Month(month)

	recA, err := e.Store.ClubRecord(ctx, a, year, mo)
	if err != nil && !activity.IsNotFound(err) {
		return nil, err
	}
	recB, err := e.Store.ClubRecord(ctx, b, year, mo)
	if err != nil && !activity.IsNotFound(err) {
		return nil, err
	}
	return &Comparison{A: recA, B: recB}, nil
}

// EventContribution is one completed event's heuristic weight.
type EventContribution struct {
	Event  activity.EventMetrics
	Weight decimal.Decimal
}

// EventContributions weighs each of the club's completed events for the
// period, sorted by weight descending.
func (e *Engine) EventContributions(ctx context.Context, clubID activity.ClubID, year, month int) ([]EventContribution, error) {
	if err := activity.ValidateWindow(year, month); err != nil {
		return nil, err
	}
	w := activity.NewMonthWindow(year, time.Month(month))

	events, err := e.Source.ClubEvents(ctx, clubID, w)
	if err != nil {
		return nil, err
	}

	out := make([]EventContribution, 0, len(events))
	for _, ev := range events {
		out = append(out, EventContribution{Event: ev, Weight: activity.EventContributionWeight(ev)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Weight.Cmp(out[j].Weight); c != 0 {
			return c > 0
		}
		return out[i].Event.EventID < out[j].Event.EventID
	})
	return out, nil
}
