package engine_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/clubhub/activity-engine/activity"
	"github.com/clubhub/activity-engine/engine"
	"github.com/clubhub/activity-engine/policy"
	"github.com/clubhub/activity-engine/store/memory"
	"github.com/clubhub/activity-engine/wallet"
)

// =============================================================================
// FIXTURES
// =============================================================================

var computedAt = time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*engine.Engine, *memory.Store, *memory.Source) {
	t.Helper()
	st := memory.NewStore()
	src := memory.NewSource()

	e := engine.New(st, src, policy.NewResolver(policy.DefaultPolicies()))
	log := logrus.New()
	log.SetOutput(io.Discard)
	e.Log = log
	e.Now = func() time.Time { return computedAt }
	return e, st, src
}

// seedClub registers one club with two active memberships (m2 is staff)
// and one inactive membership that recomputation must skip.
func seedClub(st *memory.Store, clubID activity.ClubID) {
	st.AddClub(activity.Club{ID: clubID, Name: "Chess Club"})
	st.AddMembership(activity.Membership{
		ID: "m1", UserID: "u1", ClubID: clubID,
		Role: activity.RoleOrdinary, State: activity.MembershipActive,
	})
	st.AddMembership(activity.Membership{
		ID: "m2", UserID: "u2", ClubID: clubID,
		Role: activity.RoleStaff, State: activity.MembershipActive,
	})
	st.AddMembership(activity.Membership{
		ID: "m3", UserID: "u3", ClubID: clubID,
		Role: activity.RoleOrdinary, State: activity.MembershipInactive,
	})
}

func june(day int) time.Time {
	return time.Date(2025, time.June, day, 18, 0, 0, 0, time.UTC)
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// lockedRecord is a minimal pre-locked club row for guard tests.
func lockedRecord(clubID activity.ClubID, rewardPoints int64) activity.ClubMonthlyActivity {
	lockedAt := computedAt
	return activity.ClubMonthlyActivity{
		ClubID: clubID, Year: 2025, Month: time.June,
		RewardPoints: rewardPoints,
		Locked:       true, LockedAt: &lockedAt, LockedBy: "treasurer",
		ComputedAt: computedAt,
	}
}

// =============================================================================
// MEMBER RECOMPUTATION
// =============================================================================

func TestRecalcMemberIdempotent(t *testing.T) {
	// GIVEN: A member with a solid June
	// WHEN: The month is recomputed twice
	// THEN: Both runs produce identical stored fields
	e, st, src := newTestEngine(t)
	ctx := context.Background()
	seedClub(st, "c1")

	src.AddRegistration("m1", activity.EventRegistration{EventID: "e1", EventDate: june(2), Attendance: activity.AttendanceFull})
	src.AddRegistration("m1", activity.EventRegistration{EventID: "e2", EventDate: june(9), Attendance: activity.AttendancePartial})
	src.AddSession("m1", activity.SessionRecord{SessionID: "s1", At: june(3), Status: activity.SessionPresent})
	src.AddSession("m1", activity.SessionRecord{SessionID: "s2", At: june(10), Status: activity.SessionLate})
	src.AddPenalty("m1", activity.Penalty{At: june(20), Points: -10, Reason: "noise complaint"})

	first, err := e.RecalcMember(ctx, "m1", 2025, 6)
	require.NoError(t, err)
	second, err := e.RecalcMember(ctx, "m1", 2025, 6)
	require.NoError(t, err)
	require.Equal(t, first, second)

	// base = 0.5*0.75 + 0.2*1 + 0.2*0 + 0.1*0.75 = 0.65 -> NORMAL x1.0
	require.True(t, d("0.65").Equal(first.BaseScore), "BaseScore = %s", first.BaseScore)
	require.Equal(t, "NORMAL", first.ActivityLevel)
	require.True(t, d("65").Equal(first.FinalScore), "FinalScore = %s", first.FinalScore)
	require.Equal(t, int64(-10), first.PenaltyPoints)

	// The denormalized multiplier rides the same transaction.
	m, err := st.Membership(ctx, "m1")
	require.NoError(t, err)
	require.True(t, d("1").Equal(m.CurrentMultiplier))

	stored, err := st.MemberRecord(ctx, "m1", 2025, time.June)
	require.NoError(t, err)
	require.Equal(t, *first, *stored)
}

func TestRecalcMemberOutOfWindowRecordsIgnored(t *testing.T) {
	e, st, src := newTestEngine(t)
	ctx := context.Background()
	seedClub(st, "c1")

	// May and July records must not leak into June.
	src.AddRegistration("m1", activity.EventRegistration{EventID: "e1", EventDate: time.Date(2025, time.May, 31, 23, 0, 0, 0, time.UTC), Attendance: activity.AttendanceFull})
	src.AddRegistration("m1", activity.EventRegistration{EventID: "e2", EventDate: time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC), Attendance: activity.AttendanceFull})

	rec, err := e.RecalcMember(ctx, "m1", 2025, 6)
	require.NoError(t, err)
	require.Zero(t, rec.EventsRegistered)
	require.True(t, d("0.1").Equal(rec.BaseScore), "BaseScore = %s", rec.BaseScore)
}

func TestRecalcMemberRejectsLockedMonth(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	seedClub(st, "c1")
	require.NoError(t, st.UpsertClubRecord(ctx, lockedRecord("c1", 0)))

	_, err := e.RecalcMember(ctx, "m1", 2025, 6)
	require.True(t, activity.IsConflict(err), "got %v", err)

	var lockErr *activity.LockedError
	require.ErrorAs(t, err, &lockErr)
	require.Equal(t, "treasurer", lockErr.LockedBy)
}

func TestRecalcMemberValidation(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.RecalcMember(ctx, "m1", 2025, 13)
	require.ErrorIs(t, err, activity.ErrInvalidPeriod)

	_, err = e.RecalcMember(ctx, "ghost", 2025, 6)
	require.True(t, activity.IsNotFound(err), "got %v", err)
}

// =============================================================================
// CLUB RECOMPUTATION
// =============================================================================

func TestRecalcClub(t *testing.T) {
	// GIVEN: m1 attends 2 events fully, m2 (staff) holds two excellent
	//        evaluations, m3 is inactive; the club hosted 2 events
	// THEN:
	//   m1: base = 0.5*1 + 0.1 = 0.6          -> final 60
	//   m2: base = 0.2*1 + 0.1 = 0.3 (LOW)    -> final 24
	//   club: final = 0.3*20 + 0.25*90 + 0.15*75 + 0.2*42 + 0.1*100 = 58.15
	//         capacity SMALL (0.9), quality SOLID -> award 52.34, SILVER
	//         pool = round(52.34 * 50) = 2617
	e, st, src := newTestEngine(t)
	ctx := context.Background()
	seedClub(st, "c1")

	src.AddRegistration("m1", activity.EventRegistration{EventID: "e1", EventDate: june(5), Attendance: activity.AttendanceFull})
	src.AddRegistration("m1", activity.EventRegistration{EventID: "e2", EventDate: june(12), Attendance: activity.AttendanceFull})
	src.AddEvaluation("m2", activity.StaffEvaluation{EventID: "e1", EventDate: june(5), Grade: activity.GradeExcellent})
	src.AddEvaluation("m2", activity.StaffEvaluation{EventID: "e2", EventDate: june(12), Grade: activity.GradeExcellent})
	src.AddClubEvent("c1", activity.EventMetrics{EventID: "e1", Name: "Open Tournament", Date: june(5), Feedback: d("4"), CheckinRate: d("0.5")})
	src.AddClubEvent("c1", activity.EventMetrics{EventID: "e2", Name: "Blitz Night", Date: june(12), Feedback: d("5"), CheckinRate: d("1")})

	rec, err := e.RecalcClub(ctx, "c1", 2025, 6)
	require.NoError(t, err)

	require.Equal(t, int64(2), rec.TotalEvents)
	require.Equal(t, int64(2), rec.ActiveMembers)
	require.True(t, d("4.5").Equal(rec.AvgFeedback), "AvgFeedback = %s", rec.AvgFeedback)
	require.True(t, d("0.75").Equal(rec.AvgCheckinRate), "AvgCheckinRate = %s", rec.AvgCheckinRate)
	require.True(t, d("42").Equal(rec.AvgMemberScore), "AvgMemberScore = %s", rec.AvgMemberScore)
	require.True(t, d("100").Equal(rec.StaffScore), "StaffScore = %s", rec.StaffScore)
	require.True(t, d("58.15").Equal(rec.FinalScore), "FinalScore = %s", rec.FinalScore)
	require.True(t, d("52.34").Equal(rec.AwardScore), "AwardScore = %s", rec.AwardScore)
	require.Equal(t, "SILVER", rec.AwardLevel)
	require.Equal(t, int64(2617), rec.RewardPoints)
	require.False(t, rec.Locked)

	// Active members got rows, the inactive one did not.
	rows, err := st.MemberRecordsByClub(ctx, "c1", 2025, time.June)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, activity.MembershipID("m1"), rows[0].MembershipID)
	require.True(t, d("60").Equal(rows[0].FinalScore), "m1 FinalScore = %s", rows[0].FinalScore)
	require.True(t, d("24").Equal(rows[1].FinalScore), "m2 FinalScore = %s", rows[1].FinalScore)
}

func TestRecalcClubAppliesMemberOfMonth(t *testing.T) {
	// GIVEN: m1 with a flawless June (base hits 1.0)
	// THEN: m1's row is overridden to the designation tier, final 150
	e, st, src := newTestEngine(t)
	ctx := context.Background()
	seedClub(st, "c1")

	src.AddRegistration("m1", activity.EventRegistration{EventID: "e1", EventDate: june(5), Attendance: activity.AttendanceFull})
	src.AddSession("m1", activity.SessionRecord{SessionID: "s1", At: june(6), Status: activity.SessionPresent})
	src.AddEvaluation("m1", activity.StaffEvaluation{EventID: "e1", EventDate: june(5), Grade: activity.GradeExcellent})

	_, err := e.RecalcClub(ctx, "c1", 2025, 6)
	require.NoError(t, err)

	row, err := st.MemberRecord(ctx, "m1", 2025, time.June)
	require.NoError(t, err)
	require.Equal(t, activity.MemberOfMonthRule, row.ActivityLevel)
	require.True(t, d("1.5").Equal(row.Multiplier), "Multiplier = %s", row.Multiplier)
	require.True(t, d("150").Equal(row.FinalScore), "FinalScore = %s", row.FinalScore)

	m, err := st.Membership(ctx, "m1")
	require.NoError(t, err)
	require.True(t, d("1.5").Equal(m.CurrentMultiplier))
}

func TestRecalcClubRejectsLockedMonth(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	seedClub(st, "c1")
	require.NoError(t, st.UpsertClubRecord(ctx, lockedRecord("c1", 500)))

	_, err := e.RecalcClub(ctx, "c1", 2025, 6)
	require.True(t, activity.IsConflict(err), "got %v", err)

	// The locked row is untouched.
	rec, err := st.ClubRecord(ctx, "c1", 2025, time.June)
	require.NoError(t, err)
	require.Equal(t, int64(500), rec.RewardPoints)
}

func TestRecalcAllIsolatesFailures(t *testing.T) {
	// GIVEN: Two clubs, one already locked for the period
	// THEN: The locked club fails, the other still recomputes
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	seedClub(st, "c1")
	st.AddClub(activity.Club{ID: "c2", Name: "Debate Society"})
	require.NoError(t, st.UpsertClubRecord(ctx, lockedRecord("c1", 0)))

	res, err := e.RecalcAll(ctx, 2025, 6)
	require.NoError(t, err)
	require.Equal(t, []activity.ClubID{"c2"}, res.Succeeded)
	require.Len(t, res.Failed, 1)
	require.Equal(t, activity.ClubID("c1"), res.Failed[0].ClubID)
	require.True(t, activity.IsConflict(res.Failed[0].Err))
}

// =============================================================================
// LOCK / APPROVE
// =============================================================================

func TestLockWithoutCredit(t *testing.T) {
	e, st, src := newTestEngine(t)
	ctx := context.Background()
	seedClub(st, "c1")
	src.AddClubEvent("c1", activity.EventMetrics{EventID: "e1", Date: june(5), Feedback: d("4"), CheckinRate: d("0.5")})

	_, err := e.RecalcClub(ctx, "c1", 2025, 6)
	require.NoError(t, err)
	require.NoError(t, e.Lock(ctx, "c1", 2025, 6, "alice"))

	rec, err := st.ClubRecord(ctx, "c1", 2025, time.June)
	require.NoError(t, err)
	require.True(t, rec.Locked)
	require.False(t, rec.Approved)
	require.Equal(t, "alice", rec.LockedBy)
	require.NotNil(t, rec.LockedAt)

	// Plain locking moves no funds.
	balance, err := st.Balance(ctx, wallet.ClubOwner("c1"))
	require.NoError(t, err)
	require.Zero(t, balance)

	// The locked state is terminal for both entry points.
	require.ErrorIs(t, e.Lock(ctx, "c1", 2025, 6, "bob"), activity.ErrAlreadyLocked)
	require.ErrorIs(t, e.Approve(ctx, "c1", 2025, 6, "bob"), activity.ErrAlreadyLocked)
}

func TestApproveCreditsPoolAndLocks(t *testing.T) {
	e, st, src := newTestEngine(t)
	ctx := context.Background()
	seedClub(st, "c1")
	src.AddRegistration("m1", activity.EventRegistration{EventID: "e1", EventDate: june(5), Attendance: activity.AttendanceFull})
	src.AddClubEvent("c1", activity.EventMetrics{EventID: "e1", Date: june(5), Feedback: d("4"), CheckinRate: d("0.5")})

	computed, err := e.RecalcClub(ctx, "c1", 2025, 6)
	require.NoError(t, err)
	require.Positive(t, computed.RewardPoints)

	require.NoError(t, e.Approve(ctx, "c1", 2025, 6, "treasurer"))

	rec, err := st.ClubRecord(ctx, "c1", 2025, time.June)
	require.NoError(t, err)
	require.True(t, rec.Locked)
	require.True(t, rec.Approved)

	// The pool credit and the lock are one transaction.
	balance, err := st.Balance(ctx, wallet.ClubOwner("c1"))
	require.NoError(t, err)
	require.Equal(t, computed.RewardPoints, balance)

	txs, err := st.Transactions(ctx, wallet.ClubOwner("c1"))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, wallet.TxRewardCredit, txs[0].Type)
	require.Equal(t, computed.RewardPoints, txs[0].Amount)
}

func TestLockRequiresExistingRecord(t *testing.T) {
	e, st, _ := newTestEngine(t)
	seedClub(st, "c1")

	err := e.Lock(context.Background(), "c1", 2025, 6, "alice")
	require.True(t, activity.IsNotFound(err), "got %v", err)
}

// =============================================================================
// DISTRIBUTION
// =============================================================================

// seedDistribution stores two member rows (finals 60/40), a locked club
// record with the given pool, and funds the club wallet with it.
func seedDistribution(t *testing.T, st *memory.Store, pool int64) {
	t.Helper()
	ctx := context.Background()
	seedClub(st, "c1")

	for _, row := range []activity.MemberMonthlyActivity{
		{MembershipID: "m1", ClubID: "c1", Year: 2025, Month: time.June,
			BaseScore: d("0.6"), ActivityLevel: "NORMAL", Multiplier: d("1"),
			FinalScore: d("60"), ComputedAt: computedAt},
		{MembershipID: "m2", ClubID: "c1", Year: 2025, Month: time.June,
			BaseScore: d("0.4"), ActivityLevel: "NORMAL", Multiplier: d("1"),
			FinalScore: d("40"), ComputedAt: computedAt},
	} {
		require.NoError(t, st.UpsertMemberRecord(ctx, row))
	}
	require.NoError(t, st.UpsertClubRecord(ctx, lockedRecord("c1", pool)))
	_, err := st.Credit(ctx, wallet.ClubOwner("c1"), pool, wallet.Entry{
		Type: wallet.TxAdjustment, Description: "test funding",
	})
	require.NoError(t, err)
}

func TestDistribute(t *testing.T) {
	// GIVEN: A locked month, pool 1000, member finals 60 and 40
	// THEN: Shares 600/400, no remainder, ledgers carry both transfer legs
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	seedDistribution(t, st, 1000)

	res, err := e.Distribute(ctx, "c1", 2025, 6, "treasurer")
	require.NoError(t, err)
	require.Equal(t, int64(1000), res.RewardPool)
	require.Equal(t, int64(1000), res.Distributed)
	require.Zero(t, res.Remainder)
	require.Len(t, res.Transfers, 2)
	require.Equal(t, int64(600), res.Transfers[0].Share)
	require.Equal(t, activity.UserID("u1"), res.Transfers[0].UserID)
	require.Equal(t, int64(400), res.Transfers[1].Share)

	for owner, want := range map[wallet.Owner]int64{
		wallet.ClubOwner("c1"): 0,
		wallet.UserOwner("u1"): 600,
		wallet.UserOwner("u2"): 400,
	} {
		balance, err := st.Balance(ctx, owner)
		require.NoError(t, err)
		require.Equal(t, want, balance, "balance of %s", owner)
	}

	// Recipient ledger: the credit plus the log-only bonus entry.
	txs, err := st.Transactions(ctx, wallet.UserOwner("u1"))
	require.NoError(t, err)
	require.Len(t, txs, 2)
	require.Equal(t, wallet.TxDistributionCredit, txs[0].Type)
	require.Equal(t, wallet.TxBonus, txs[1].Type)
	require.Equal(t, int64(600), txs[1].Amount)

	rec, err := st.ClubRecord(ctx, "c1", 2025, time.June)
	require.NoError(t, err)
	require.NotNil(t, rec.DistributedAt)
	require.Equal(t, "treasurer", rec.DistributedBy)

	// Single-shot: the second attempt conflicts.
	_, err = e.Distribute(ctx, "c1", 2025, 6, "treasurer")
	require.ErrorIs(t, err, activity.ErrAlreadyDistributed)
}

func TestDistributeFlooringRemainder(t *testing.T) {
	// Pool 1001 over finals 60/40: floor(600.6)=600, floor(400.4)=400.
	// The 1-point residue stays in the club wallet.
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	seedDistribution(t, st, 1001)

	res, err := e.Distribute(ctx, "c1", 2025, 6, "treasurer")
	require.NoError(t, err)
	require.Equal(t, int64(1000), res.Distributed)
	require.Equal(t, int64(1), res.Remainder)

	balance, err := st.Balance(ctx, wallet.ClubOwner("c1"))
	require.NoError(t, err)
	require.Equal(t, int64(1), balance)
}

func TestDistributeNearZeroScores(t *testing.T) {
	// GIVEN: Member finals summing below 1
	// THEN: The divisor floors at 1 instead of exploding the shares
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	seedClub(st, "c1")
	require.NoError(t, st.UpsertMemberRecord(ctx, activity.MemberMonthlyActivity{
		MembershipID: "m1", ClubID: "c1", Year: 2025, Month: time.June,
		FinalScore: d("0.4"), ComputedAt: computedAt,
	}))
	require.NoError(t, st.UpsertClubRecord(ctx, lockedRecord("c1", 10)))
	_, err := st.Credit(ctx, wallet.ClubOwner("c1"), 10, wallet.Entry{Type: wallet.TxAdjustment})
	require.NoError(t, err)

	res, err := e.Distribute(ctx, "c1", 2025, 6, "treasurer")
	require.NoError(t, err)
	// share = floor(0.4 * 10 / 1) = 4
	require.Equal(t, int64(4), res.Distributed)
	require.Equal(t, int64(6), res.Remainder)
}

func TestDistributeGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("not locked", func(t *testing.T) {
		e, st, _ := newTestEngine(t)
		seedClub(st, "c1")
		rec := lockedRecord("c1", 100)
		rec.Locked = false
		rec.LockedAt = nil
		require.NoError(t, st.UpsertClubRecord(ctx, rec))

		_, err := e.Distribute(ctx, "c1", 2025, 6, "treasurer")
		require.ErrorIs(t, err, activity.ErrNotLocked)
	})

	t.Run("zero pool", func(t *testing.T) {
		e, st, _ := newTestEngine(t)
		seedClub(st, "c1")
		require.NoError(t, st.UpsertClubRecord(ctx, lockedRecord("c1", 0)))

		_, err := e.Distribute(ctx, "c1", 2025, 6, "treasurer")
		require.ErrorIs(t, err, activity.ErrNoRewardPoints)
	})

	t.Run("no member rows", func(t *testing.T) {
		e, st, _ := newTestEngine(t)
		seedClub(st, "c1")
		require.NoError(t, st.UpsertClubRecord(ctx, lockedRecord("c1", 100)))

		_, err := e.Distribute(ctx, "c1", 2025, 6, "treasurer")
		require.ErrorIs(t, err, activity.ErrNoMemberActivity)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		e, st, _ := newTestEngine(t)
		seedDistribution(t, st, 1000)
		// Drain half the pool out from under the record.
		_, err := st.Debit(ctx, wallet.ClubOwner("c1"), 500, wallet.Entry{Type: wallet.TxAdjustment})
		require.NoError(t, err)

		_, err = e.Distribute(ctx, "c1", 2025, 6, "treasurer")
		var insufficient *wallet.InsufficientFundsError
		require.ErrorAs(t, err, &insufficient)
		require.Equal(t, int64(500), insufficient.Available)

		// Nothing moved.
		balance, err := st.Balance(ctx, wallet.UserOwner("u1"))
		require.NoError(t, err)
		require.Zero(t, balance)
	})
}

func TestDistributeRollsBackOnPartialFailure(t *testing.T) {
	// GIVEN: The second recipient's membership is missing
	// THEN: The whole distribution rolls back, including the first transfer
	e, st, _ := newTestEngine(t)
	ctx := context.Background()

	st.AddClub(activity.Club{ID: "c1", Name: "Chess Club"})
	st.AddMembership(activity.Membership{
		ID: "m1", UserID: "u1", ClubID: "c1",
		Role: activity.RoleOrdinary, State: activity.MembershipActive,
	})
	for _, row := range []activity.MemberMonthlyActivity{
		{MembershipID: "m1", ClubID: "c1", Year: 2025, Month: time.June, FinalScore: d("60"), ComputedAt: computedAt},
		{MembershipID: "m2", ClubID: "c1", Year: 2025, Month: time.June, FinalScore: d("40"), ComputedAt: computedAt},
	} {
		require.NoError(t, st.UpsertMemberRecord(ctx, row))
	}
	require.NoError(t, st.UpsertClubRecord(ctx, lockedRecord("c1", 1000)))
	_, err := st.Credit(ctx, wallet.ClubOwner("c1"), 1000, wallet.Entry{Type: wallet.TxAdjustment})
	require.NoError(t, err)

	_, err = e.Distribute(ctx, "c1", 2025, 6, "treasurer")
	require.True(t, activity.IsNotFound(err), "got %v", err)

	clubBalance, err := st.Balance(ctx, wallet.ClubOwner("c1"))
	require.NoError(t, err)
	require.Equal(t, int64(1000), clubBalance)

	u1Balance, err := st.Balance(ctx, wallet.UserOwner("u1"))
	require.NoError(t, err)
	require.Zero(t, u1Balance)

	rec, err := st.ClubRecord(ctx, "c1", 2025, time.June)
	require.NoError(t, err)
	require.Nil(t, rec.DistributedAt)
}

// =============================================================================
// READ PATHS
// =============================================================================

func TestRanking(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()

	for _, rec := range []activity.ClubMonthlyActivity{
		{ClubID: "cB", Year: 2025, Month: time.June, FinalScore: d("80"), ComputedAt: computedAt},
		{ClubID: "cA", Year: 2025, Month: time.June, FinalScore: d("90"), ComputedAt: computedAt},
		{ClubID: "cC", Year: 2025, Month: time.June, FinalScore: d("80"), ComputedAt: computedAt},
	} {
		require.NoError(t, st.UpsertClubRecord(ctx, rec))
	}

	rows, err := e.Ranking(ctx, 2025, 6)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	// Score descending, ties by club id.
	require.Equal(t, activity.ClubID("cA"), rows[0].ClubID)
	require.Equal(t, activity.ClubID("cB"), rows[1].ClubID)
	require.Equal(t, activity.ClubID("cC"), rows[2].ClubID)
}

func TestTrending(t *testing.T) {
	// GIVEN: c1 improved from 40 to 50; c2 has no May row
	// THEN: c2 reports 100% growth by convention and leads on diff
	e, st, _ := newTestEngine(t)
	ctx := context.Background()

	for _, rec := range []activity.ClubMonthlyActivity{
		{ClubID: "c1", Year: 2025, Month: time.May, FinalScore: d("40"), ComputedAt: computedAt},
		{ClubID: "c1", Year: 2025, Month: time.June, FinalScore: d("50"), ComputedAt: computedAt},
		{ClubID: "c2", Year: 2025, Month: time.June, FinalScore: d("30"), ComputedAt: computedAt},
	} {
		require.NoError(t, st.UpsertClubRecord(ctx, rec))
	}

	entries, err := e.Trending(ctx, 2025, 6)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Equal(t, activity.ClubID("c2"), entries[0].ClubID)
	require.True(t, d("30").Equal(entries[0].Diff))
	require.True(t, d("100").Equal(entries[0].PercentGrowth))

	require.Equal(t, activity.ClubID("c1"), entries[1].ClubID)
	require.True(t, d("10").Equal(entries[1].Diff))
	require.True(t, d("25").Equal(entries[1].PercentGrowth))
}

func TestHistoryAndCompare(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()

	for _, rec := range []activity.ClubMonthlyActivity{
		{ClubID: "c1", Year: 2025, Month: time.June, FinalScore: d("50"), ComputedAt: computedAt},
		{ClubID: "c1", Year: 2025, Month: time.March, FinalScore: d("30"), ComputedAt: computedAt},
		{ClubID: "c1", Year: 2024, Month: time.December, FinalScore: d("70"), ComputedAt: computedAt},
	} {
		require.NoError(t, st.UpsertClubRecord(ctx, rec))
	}

	history, err := e.History(ctx, "c1", 2025)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, time.March, history[0].Month)
	require.Equal(t, time.June, history[1].Month)

	cmp, err := e.Compare(ctx, "c1", "c2", 2025, 6)
	require.NoError(t, err)
	require.NotNil(t, cmp.A)
	require.Nil(t, cmp.B)
	require.True(t, d("50").Equal(cmp.A.FinalScore))
}

func TestEventContributions(t *testing.T) {
	e, _, src := newTestEngine(t)
	ctx := context.Background()

	// weights: e1 = 90*0.6 + 80*0.4 = 86, e2 = 60*0.6 + 100*0.4 = 76
	src.AddClubEvent("c1", activity.EventMetrics{EventID: "e2", Date: june(12), Feedback: d("3"), CheckinRate: d("1")})
	src.AddClubEvent("c1", activity.EventMetrics{EventID: "e1", Date: june(5), Feedback: d("4.5"), CheckinRate: d("0.8")})

	out, err := e.EventContributions(ctx, "c1", 2025, 6)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "e1", out[0].Event.EventID)
	require.True(t, d("86").Equal(out[0].Weight), "weight = %s", out[0].Weight)
	require.Equal(t, "e2", out[1].Event.EventID)
	require.True(t, d("76").Equal(out[1].Weight), "weight = %s", out[1].Weight)
}

// =============================================================================
// RESET
// =============================================================================

func TestResetMonth(t *testing.T) {
	e, st, src := newTestEngine(t)
	ctx := context.Background()
	seedClub(st, "c1")
	src.AddRegistration("m1", activity.EventRegistration{EventID: "e1", EventDate: june(5), Attendance: activity.AttendanceFull})

	_, err := e.RecalcClub(ctx, "c1", 2025, 6)
	require.NoError(t, err)

	require.NoError(t, e.ResetMonth(ctx, "c1", 2025, 6))

	_, err = st.ClubRecord(ctx, "c1", 2025, time.June)
	require.True(t, activity.IsNotFound(err), "got %v", err)
	rows, err := st.MemberRecordsByClub(ctx, "c1", 2025, time.June)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestResetMonthRejectsLocked(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	seedClub(st, "c1")
	require.NoError(t, st.UpsertClubRecord(ctx, lockedRecord("c1", 100)))

	err := e.ResetMonth(ctx, "c1", 2025, 6)
	require.True(t, activity.IsConflict(err), "got %v", err)

	_, err = st.ClubRecord(ctx, "c1", 2025, time.June)
	require.NoError(t, err)
}
