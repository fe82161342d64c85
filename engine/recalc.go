/*
recalc.go - Idempotent recomputation operations

PURPOSE:
  Turns raw behavioral records into stored monthly rows. Recomputation is
  safe to repeat: identical underlying data produces identical stored
  fields, and a locked month always rejects with a Conflict.

OPERATIONS:
  RecalcMember: one membership, one month -> upsert one member row
  RecalcClub:   every active membership, then member-of-month selection,
                then the club row - all in one transaction
  RecalcAll:    RecalcClub per club; one club's failure never rolls back
                or aborts the others
  ResetMonth:   admin deletion of an unlocked month's rows
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/clubhub/activity-engine/activity"
)

// =============================================================================
// MEMBER RECOMPUTATION
// =============================================================================

// RecalcMember recomputes one membership's monthly row. The owning club's
// record must not be locked.
func (e *Engine) RecalcMember(ctx context.Context, id activity.MembershipID, year, month int) (*activity.MemberMonthlyActivity, error) {
	if err := activity.ValidateWindow(year, month); err != nil {
		return nil, err
	}
	w := activity.NewMonthWindow(year, time.Month(month))

	var rec *activity.MemberMonthlyActivity
	err := e.Store.WithTx(ctx, func(s Store) error {
		m, err := s.Membership(ctx, id)
		if err != nil {
			return err
		}

		clubRec, err := s.ClubRecord(ctx, m.ClubID, w.Year, w.Month)
		if err != nil && !activity.IsNotFound(err) {
			return err
		}
		if err := lockGuard(clubRec); err != nil {
			return err
		}

		rec, err = e.recalcMemberTx(ctx, s, *m, w)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// recalcMemberTx aggregates, scores, and upserts one membership inside an
// open transaction. The lock guard has already run.
func (e *Engine) recalcMemberTx(ctx context.Context, s Store, m activity.Membership, w activity.MonthWindow) (*activity.MemberMonthlyActivity, error) {
	src := e.sourceFor(s)
	regs, err := src.EventRegistrations(ctx, m.ID, w)
	if err != nil {
		return nil, err
	}
	sessions, err := src.SessionRecords(ctx, m.ID, w)
	if err != nil {
		return nil, err
	}
	evals, err := src.StaffEvaluations(ctx, m.ID, w)
	if err != nil {
		return nil, err
	}
	penalties, err := src.Penalties(ctx, m.ID, w)
	if err != nil {
		return nil, err
	}

	in := activity.MemberInputs{
		Events:   activity.EventParticipation(regs, w),
		Sessions: activity.SessionAttendance(sessions, w),
		StaffAvg: activity.StaffPerformance(evals, w),
		Penalty:  activity.PenaltySum(penalties, w),
	}
	res := activity.ComputeMemberScore(in, e.Policies)

	rec := activity.MemberMonthlyActivity{
		MembershipID:     m.ID,
		ClubID:           m.ClubID,
		Year:             w.Year,
		Month:            w.Month,
		EventsRegistered: in.Events.Registered,
		EventsAttended:   in.Events.AttendedWeighted,
		SessionsTotal:    in.Sessions.Total,
		SessionsPresent:  in.Sessions.Present,
		StaffAverage:     in.StaffAvg.Round(4),
		PenaltyPoints:    in.Penalty,
		BaseScore:        res.BaseScore,
		ActivityLevel:    res.ActivityLevel,
		Multiplier:       res.Multiplier,
		FinalScore:       res.FinalScore,
		ComputedAt:       e.Now().UTC(),
	}

	if err := s.UpsertMemberRecord(ctx, rec); err != nil {
		return nil, err
	}
	// Same transaction as the upsert: the denormalized multiplier and the
	// row must never disagree.
	if err := s.SetMembershipMultiplier(ctx, m.ID, res.Multiplier); err != nil {
		return nil, err
	}
	return &rec, nil
}

// =============================================================================
// CLUB RECOMPUTATION
// =============================================================================

// RecalcClub recomputes every active membership of the club, runs the
// member-of-month selection, and upserts the club row - one transaction.
func (e *Engine) RecalcClub(ctx context.Context, clubID activity.ClubID, year, month int) (*activity.ClubMonthlyActivity, error) {
	if err := activity.ValidateWindow(year, month); err != nil {
		return nil, err
	}
	w := activity.NewMonthWindow(year, time.Month(month))

	var rec *activity.ClubMonthlyActivity
	err := e.Store.WithTx(ctx, func(s Store) error {
		club, err := s.Club(ctx, clubID)
		if err != nil {
			return err
		}

		existing, err := s.ClubRecord(ctx, clubID, w.Year, w.Month)
		if err != nil && !activity.IsNotFound(err) {
			return err
		}
		if err := lockGuard(existing); err != nil {
			return err
		}

		memberships, err := s.MembershipsByClub(ctx, clubID)
		if err != nil {
			return err
		}

		var (
			rows       []activity.MemberMonthlyActivity
			staffSum   = decimal.Zero
			staffCount int64
		)
		for _, m := range memberships {
			if !m.IsActive() {
				continue
			}
			row, err := e.recalcMemberTx(ctx, s, m, w)
			if err != nil {
				return err
			}
			rows = append(rows, *row)

			if m.IsStaff() {
				evals, err := e.sourceFor(s).StaffEvaluations(ctx, m.ID, w)
				if err != nil {
					return err
				}
				avg := activity.StaffPerformance(evals, w)
				if !avg.IsZero() {
					staffSum = staffSum.Add(avg)
					staffCount++
				}
			}
		}

		rows, err = e.applyMemberOfMonth(ctx, s, rows)
		if err != nil {
			return err
		}

		rec, err = e.upsertClubRecordTx(ctx, s, *club, w, rows, staffSum, staffCount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// applyMemberOfMonth selects and overrides the designated member, writing
// the overridden row and multiplier back inside the open transaction.
func (e *Engine) applyMemberOfMonth(ctx context.Context, s Store, rows []activity.MemberMonthlyActivity) ([]activity.MemberMonthlyActivity, error) {
	best := activity.SelectMemberOfMonth(rows)
	if best == nil {
		return rows, nil
	}
	overridden, ok := activity.ApplyMemberOfMonth(*best, e.Policies)
	if !ok {
		return rows, nil
	}
	if err := s.UpsertMemberRecord(ctx, overridden); err != nil {
		return nil, err
	}
	if err := s.SetMembershipMultiplier(ctx, overridden.MembershipID, overridden.Multiplier); err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].MembershipID == overridden.MembershipID {
			rows[i] = overridden
		}
	}
	return rows, nil
}

// upsertClubRecordTx aggregates the club-level metrics and writes the row.
func (e *Engine) upsertClubRecordTx(ctx context.Context, s Store, club activity.Club, w activity.MonthWindow,
	rows []activity.MemberMonthlyActivity, staffSum decimal.Decimal, staffCount int64) (*activity.ClubMonthlyActivity, error) {

	events, err := e.sourceFor(s).ClubEvents(ctx, club.ID, w)
	if err != nil {
		return nil, err
	}

	var feedbackSum, checkinSum decimal.Decimal
	for _, ev := range events {
		feedbackSum = feedbackSum.Add(ev.Feedback)
		checkinSum = checkinSum.Add(ev.CheckinRate)
	}
	avgFeedback, avgCheckin := decimal.Zero, decimal.Zero
	if n := int64(len(events)); n > 0 {
		avgFeedback = feedbackSum.Div(decimal.NewFromInt(n)).Round(4)
		avgCheckin = checkinSum.Div(decimal.NewFromInt(n)).Round(4)
	}

	avgMemberScore := decimal.Zero
	if n := int64(len(rows)); n > 0 {
		sum := decimal.Zero
		for _, row := range rows {
			sum = sum.Add(row.FinalScore)
		}
		avgMemberScore = sum.Div(decimal.NewFromInt(n)).Round(2)
	}

	staffScore := decimal.Zero
	if staffCount > 0 {
		staffScore = staffSum.Div(decimal.NewFromInt(staffCount)).Mul(decimal.NewFromInt(100)).Round(2)
	}

	in := activity.ClubInputs{
		TotalEvents:    int64(len(events)),
		AvgFeedback:    avgFeedback,
		AvgCheckinRate: avgCheckin,
		AvgMemberScore: avgMemberScore,
		StaffScore:     staffScore,
		ActiveMembers:  int64(len(rows)),
	}
	res := activity.ComputeClubScore(in, e.Policies)

	rec := activity.ClubMonthlyActivity{
		ClubID:         club.ID,
		Year:           w.Year,
		Month:          w.Month,
		TotalEvents:    in.TotalEvents,
		AvgFeedback:    in.AvgFeedback,
		AvgCheckinRate: in.AvgCheckinRate,
		AvgMemberScore: in.AvgMemberScore,
		StaffScore:     in.StaffScore,
		ActiveMembers:  in.ActiveMembers,
		FinalScore:     res.FinalScore,
		AwardScore:     res.AwardScore,
		AwardLevel:     res.AwardLevel,
		RewardPoints:   res.RewardPoints,
		ComputedAt:     e.Now().UTC(),
	}
	if err := s.UpsertClubRecord(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// =============================================================================
// ALL-CLUBS RECOMPUTATION
// =============================================================================

// ClubFailure records one club's recomputation error within RecalcAll.
type ClubFailure struct {
	ClubID activity.ClubID
	Err    error
}

// RecalcAllResult reports which clubs succeeded and which failed.
type RecalcAllResult struct {
	Year      int
	Month     time.Month
	Succeeded []activity.ClubID
	Failed    []ClubFailure
}

// RecalcAll runs RecalcClub for every club sequentially. Each club is its
// own transaction; a failure is logged and skipped, never cascaded.
func (e *Engine) RecalcAll(ctx context.Context, year, month int) (*RecalcAllResult, error) {
	if err := activity.ValidateWindow(year, month); err != nil {
		return nil, err
	}

	clubs, err := e.Store.Clubs(ctx)
	if err != nil {
		return nil, err
	}

	result := &RecalcAllResult{Year: year, Month: time.Month(month)}
	for _, club := range clubs {
		if _, err := e.RecalcClub(ctx, club.ID, year, month); err != nil {
			e.Log.WithFields(logrus.Fields{
				"club":   club.ID,
				"period": activity.NewMonthWindow(year, time.Month(month)).String(),
			}).WithError(err).Warn("club recomputation failed, skipping")
			result.Failed = append(result.Failed, ClubFailure{ClubID: club.ID, Err: err})
			continue
		}
		result.Succeeded = append(result.Succeeded, club.ID)
	}
	return result, nil
}

// =============================================================================
// ADMINISTRATIVE RESET
// =============================================================================

// ResetMonth deletes an unlocked month's member and club rows for a club.
// The only way rows ever leave the store.
func (e *Engine) ResetMonth(ctx context.Context, clubID activity.ClubID, year, month int) error {
	if err := activity.ValidateWindow(year, month); err != nil {
		return err
	}
	w := activity.NewMonthWindow(year, time.Month(month))

	return e.Store.WithTx(ctx, func(s Store) error {
		if _, err := s.Club(ctx, clubID); err != nil {
			return err
		}
		rec, err := s.ClubRecord(ctx, clubID, w.Year, w.Month)
		if err != nil && !activity.IsNotFound(err) {
			return err
		}
		if err := lockGuard(rec); err != nil {
			return err
		}
		if err := s.DeleteMemberRecords(ctx, clubID, w.Year, w.Month); err != nil {
			return err
		}
		return s.DeleteClubRecord(ctx, clubID, w.Year, w.Month)
	})
}
