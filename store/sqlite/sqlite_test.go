package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/clubhub/activity-engine/activity"
	"github.com/clubhub/activity-engine/engine"
	"github.com/clubhub/activity-engine/policy"
	"github.com/clubhub/activity-engine/store/sqlite"
	"github.com/clubhub/activity-engine/wallet"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// =============================================================================
// CLUBS AND MEMBERSHIPS
// =============================================================================

func TestClubRoundtrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveClub(ctx, activity.Club{ID: "c1", Name: "Chess Club"}))
	require.NoError(t, st.SaveClub(ctx, activity.Club{ID: "c2", Name: "Debate Society"}))
	// Upsert replaces the name, not the row count.
	require.NoError(t, st.SaveClub(ctx, activity.Club{ID: "c1", Name: "Chess & Go Club"}))

	club, err := st.Club(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "Chess & Go Club", club.Name)

	clubs, err := st.Clubs(ctx)
	require.NoError(t, err)
	require.Len(t, clubs, 2)

	_, err = st.Club(ctx, "ghost")
	require.True(t, activity.IsNotFound(err), "got %v", err)
}

func TestMembershipRoundtrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveClub(ctx, activity.Club{ID: "c1", Name: "Chess Club"}))
	require.NoError(t, st.SaveMembership(ctx, activity.Membership{
		ID: "m1", UserID: "u1", ClubID: "c1",
		Role: activity.RoleStaff, State: activity.MembershipActive,
	}))

	m, err := st.Membership(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, activity.RoleStaff, m.Role)
	require.True(t, d("1").Equal(m.CurrentMultiplier), "default multiplier = %s", m.CurrentMultiplier)

	require.NoError(t, st.SetMembershipMultiplier(ctx, "m1", d("1.2")))
	m, err = st.Membership(ctx, "m1")
	require.NoError(t, err)
	require.True(t, d("1.2").Equal(m.CurrentMultiplier))

	err = st.SetMembershipMultiplier(ctx, "ghost", d("1.2"))
	require.True(t, activity.IsNotFound(err), "got %v", err)

	ms, err := st.MembershipsByClub(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, ms, 1)
}

// =============================================================================
// MONTHLY RECORDS
// =============================================================================

func TestMemberRecordRoundtrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec := activity.MemberMonthlyActivity{
		MembershipID: "m1", ClubID: "c1", Year: 2025, Month: time.June,
		EventsRegistered: 4, EventsAttended: d("3.5"),
		SessionsTotal: 8, SessionsPresent: 7,
		StaffAverage: d("0.875"), PenaltyPoints: -10,
		BaseScore: d("0.8625"), ActivityLevel: "ACTIVE",
		Multiplier: d("1.1"), FinalScore: d("94.88"),
		ComputedAt: time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, st.UpsertMemberRecord(ctx, rec))

	got, err := st.MemberRecord(ctx, "m1", 2025, time.June)
	require.NoError(t, err)
	require.Equal(t, rec.EventsRegistered, got.EventsRegistered)
	require.True(t, rec.EventsAttended.Equal(got.EventsAttended))
	require.True(t, rec.BaseScore.Equal(got.BaseScore))
	require.True(t, rec.FinalScore.Equal(got.FinalScore))
	require.Equal(t, rec.PenaltyPoints, got.PenaltyPoints)
	require.True(t, rec.ComputedAt.Equal(got.ComputedAt))

	// Upsert overwrites in place.
	rec.FinalScore = d("80")
	require.NoError(t, st.UpsertMemberRecord(ctx, rec))
	rows, err := st.MemberRecordsByClub(ctx, "c1", 2025, time.June)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, d("80").Equal(rows[0].FinalScore))

	_, err = st.MemberRecord(ctx, "m1", 2025, time.May)
	require.True(t, activity.IsNotFound(err), "got %v", err)
}

func TestClubRecordRoundtrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec := activity.ClubMonthlyActivity{
		ClubID: "c1", Year: 2025, Month: time.June,
		TotalEvents: 2, AvgFeedback: d("4.5"), AvgCheckinRate: d("0.75"),
		AvgMemberScore: d("42"), StaffScore: d("100"), ActiveMembers: 2,
		FinalScore: d("58.15"), AwardScore: d("52.34"),
		AwardLevel: "SILVER", RewardPoints: 2617,
		ComputedAt: time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, st.UpsertClubRecord(ctx, rec))

	got, err := st.ClubRecord(ctx, "c1", 2025, time.June)
	require.NoError(t, err)
	require.True(t, rec.FinalScore.Equal(got.FinalScore))
	require.True(t, rec.AwardScore.Equal(got.AwardScore))
	require.Equal(t, rec.RewardPoints, got.RewardPoints)
	require.False(t, got.Locked)
	require.Nil(t, got.LockedAt)
	require.Nil(t, got.DistributedAt)

	// Lock descriptor fields survive the roundtrip.
	lockedAt := time.Date(2025, time.July, 2, 10, 0, 0, 0, time.UTC)
	rec.Locked = true
	rec.LockedAt = &lockedAt
	rec.LockedBy = "treasurer"
	rec.Approved = true
	require.NoError(t, st.UpsertClubRecord(ctx, rec))

	got, err = st.ClubRecord(ctx, "c1", 2025, time.June)
	require.NoError(t, err)
	require.True(t, got.Locked)
	require.True(t, got.Approved)
	require.Equal(t, "treasurer", got.LockedBy)
	require.NotNil(t, got.LockedAt)
	require.True(t, lockedAt.Equal(*got.LockedAt))
}

func TestRecordDeletion(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertMemberRecord(ctx, activity.MemberMonthlyActivity{
		MembershipID: "m1", ClubID: "c1", Year: 2025, Month: time.June,
		ComputedAt: time.Now().UTC(),
	}))
	require.NoError(t, st.UpsertClubRecord(ctx, activity.ClubMonthlyActivity{
		ClubID: "c1", Year: 2025, Month: time.June, ComputedAt: time.Now().UTC(),
	}))

	require.NoError(t, st.DeleteMemberRecords(ctx, "c1", 2025, time.June))
	require.NoError(t, st.DeleteClubRecord(ctx, "c1", 2025, time.June))

	rows, err := st.MemberRecordsByClub(ctx, "c1", 2025, time.June)
	require.NoError(t, err)
	require.Empty(t, rows)
	_, err = st.ClubRecord(ctx, "c1", 2025, time.June)
	require.True(t, activity.IsNotFound(err), "got %v", err)
}

// =============================================================================
// WALLETS
// =============================================================================

func TestWalletOperations(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	owner := wallet.UserOwner("u1")

	// Untouched wallets read as zero.
	balance, err := st.Balance(ctx, owner)
	require.NoError(t, err)
	require.Zero(t, balance)

	_, err = st.Credit(ctx, owner, 100, wallet.Entry{Type: wallet.TxRewardCredit, Description: "pool"})
	require.NoError(t, err)
	_, err = st.Debit(ctx, owner, 30, wallet.Entry{Type: wallet.TxDistributionDebit})
	require.NoError(t, err)
	// Log-only entry: ledger row, no balance change.
	_, err = st.AppendEntry(ctx, owner, 70, wallet.Entry{Type: wallet.TxBonus})
	require.NoError(t, err)

	balance, err = st.Balance(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, int64(70), balance)

	txs, err := st.Transactions(ctx, owner)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	require.Equal(t, int64(100), txs[0].Amount)
	require.Equal(t, int64(-30), txs[1].Amount)
	require.Equal(t, wallet.TxBonus, txs[2].Type)

	// Overdraft rejected with the shortage detail.
	_, err = st.Debit(ctx, owner, 1000, wallet.Entry{Type: wallet.TxDistributionDebit})
	var insufficient *wallet.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, int64(70), insufficient.Available)

	_, err = st.Credit(ctx, owner, 0, wallet.Entry{Type: wallet.TxAdjustment})
	require.ErrorIs(t, err, wallet.ErrInvalidAmount)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTxRollsBackOnError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	owner := wallet.ClubOwner("c1")
	boom := errors.New("boom")

	err := st.WithTx(ctx, func(s engine.Store) error {
		if _, err := s.Credit(ctx, owner, 500, wallet.Entry{Type: wallet.TxAdjustment}); err != nil {
			return err
		}
		if err := s.UpsertClubRecord(ctx, activity.ClubMonthlyActivity{
			ClubID: "c1", Year: 2025, Month: time.June, ComputedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	balance, err := st.Balance(ctx, owner)
	require.NoError(t, err)
	require.Zero(t, balance)
	_, err = st.ClubRecord(ctx, "c1", 2025, time.June)
	require.True(t, activity.IsNotFound(err), "got %v", err)
}

func TestWithTxCommits(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	owner := wallet.ClubOwner("c1")

	err := st.WithTx(ctx, func(s engine.Store) error {
		_, err := s.Credit(ctx, owner, 500, wallet.Entry{Type: wallet.TxAdjustment})
		return err
	})
	require.NoError(t, err)

	balance, err := st.Balance(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, int64(500), balance)
}

// =============================================================================
// BEHAVIORAL SOURCE
// =============================================================================

func TestSourceWindowFiltering(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	w := activity.NewMonthWindow(2025, time.June)

	require.NoError(t, st.SaveEventRegistration(ctx, "m1", activity.EventRegistration{
		EventID: "e1", EventDate: time.Date(2025, time.June, 5, 18, 0, 0, 0, time.UTC),
		Attendance: activity.AttendanceFull,
	}))
	require.NoError(t, st.SaveEventRegistration(ctx, "m1", activity.EventRegistration{
		EventID: "e2", EventDate: time.Date(2025, time.May, 30, 18, 0, 0, 0, time.UTC),
		Attendance: activity.AttendanceFull,
	}))
	require.NoError(t, st.SaveSessionRecord(ctx, "m1", activity.SessionRecord{
		SessionID: "s1", At: time.Date(2025, time.June, 6, 18, 0, 0, 0, time.UTC),
		Status: activity.SessionLate,
	}))
	require.NoError(t, st.SavePenalty(ctx, "m1", activity.Penalty{
		At: time.Date(2025, time.June, 20, 18, 0, 0, 0, time.UTC), Points: -10, Reason: "test",
	}))
	require.NoError(t, st.SaveClubEvent(ctx, "c1", activity.EventMetrics{
		EventID: "e1", Name: "Open Tournament",
		Date:     time.Date(2025, time.June, 5, 18, 0, 0, 0, time.UTC),
		Feedback: d("4.5"), CheckinRate: d("0.8"),
	}))

	regs, err := st.EventRegistrations(ctx, "m1", w)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	require.Equal(t, "e1", regs[0].EventID)

	sessions, err := st.SessionRecords(ctx, "m1", w)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, activity.SessionLate, sessions[0].Status)

	penalties, err := st.Penalties(ctx, "m1", w)
	require.NoError(t, err)
	require.Len(t, penalties, 1)
	require.Equal(t, int64(-10), penalties[0].Points)

	events, err := st.ClubEvents(ctx, "c1", w)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.True(t, d("4.5").Equal(events[0].Feedback))

	// Re-saving the same event id updates instead of duplicating.
	require.NoError(t, st.SaveEventRegistration(ctx, "m1", activity.EventRegistration{
		EventID: "e1", EventDate: time.Date(2025, time.June, 5, 18, 0, 0, 0, time.UTC),
		Attendance: activity.AttendancePartial,
	}))
	regs, err = st.EventRegistrations(ctx, "m1", w)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	require.Equal(t, activity.AttendancePartial, regs[0].Attendance)

	// Sessions and evaluations upsert on their natural keys the same way.
	require.NoError(t, st.SaveSessionRecord(ctx, "m1", activity.SessionRecord{
		SessionID: "s1", At: time.Date(2025, time.June, 6, 18, 0, 0, 0, time.UTC),
		Status: activity.SessionPresent,
	}))
	sessions, err = st.SessionRecords(ctx, "m1", w)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, activity.SessionPresent, sessions[0].Status)

	require.NoError(t, st.SaveStaffEvaluation(ctx, "m1", activity.StaffEvaluation{
		EventID: "e1", EventDate: time.Date(2025, time.June, 5, 18, 0, 0, 0, time.UTC),
		Grade: activity.GradeGood,
	}))
	require.NoError(t, st.SaveStaffEvaluation(ctx, "m1", activity.StaffEvaluation{
		EventID: "e1", EventDate: time.Date(2025, time.June, 5, 18, 0, 0, 0, time.UTC),
		Grade: activity.GradeExcellent,
	}))
	evals, err := st.StaffEvaluations(ctx, "m1", w)
	require.NoError(t, err)
	require.Len(t, evals, 1)
	require.Equal(t, activity.GradeExcellent, evals[0].Grade)
}

// =============================================================================
// POLICIES
// =============================================================================

func TestPolicyRoundtrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	max := int64(89)

	require.NoError(t, st.SavePolicy(ctx, policy.MultiplierPolicy{
		ID: "member-active", Target: policy.TargetMember,
		Dimension: policy.DimMemberActivityScore,
		Min:       70, Max: &max, Multiplier: d("1.1"),
		RuleName: "ACTIVE", Active: true,
	}))
	require.NoError(t, st.SavePolicy(ctx, policy.MultiplierPolicy{
		ID: "member-full", Target: policy.TargetMember,
		Dimension: policy.DimMemberActivityScore,
		Min:       90, Multiplier: d("1.2"), RuleName: "FULL", Active: true,
	}))

	rows, err := st.Policies(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "member-active", rows[0].ID)
	require.NotNil(t, rows[0].Max)
	require.Equal(t, int64(89), *rows[0].Max)
	require.Nil(t, rows[1].Max)
	require.True(t, d("1.2").Equal(rows[1].Multiplier))
}
