package sqlite_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/clubhub/activity-engine/activity"
	"github.com/clubhub/activity-engine/engine"
	"github.com/clubhub/activity-engine/policy"
	"github.com/clubhub/activity-engine/store/sqlite"
	"github.com/clubhub/activity-engine/wallet"
)

// newSQLiteEngine wires one store as both record Store and behavioral
// Source, the way cmd/server does. Recomputation has to read raw records
// through its own open transaction; with the pool capped at a single
// connection, any other path hangs.
func newSQLiteEngine(t *testing.T) (*engine.Engine, *sqlite.Store) {
	t.Helper()
	st := newTestStore(t)
	e := engine.New(st, st, policy.NewResolver(policy.DefaultPolicies()))
	e.Now = func() time.Time { return time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC) }
	log := logrus.New()
	log.SetOutput(io.Discard)
	e.Log = log
	return e, st
}

func TestMonthlyFlowOverSQLiteStore(t *testing.T) {
	// GIVEN: One club and one ordinary member with June records: a partial
	//        event attendance, one session present, one club event
	// WHEN: The month is recomputed, approved, and distributed
	// THEN: Every step completes against the single shared database and
	//       the computed values match the pure calculators
	e, st := newSQLiteEngine(t)
	ctx := context.Background()

	require.NoError(t, st.SaveClub(ctx, activity.Club{ID: "c1", Name: "Chess Club"}))
	require.NoError(t, st.SaveMembership(ctx, activity.Membership{
		ID: "m1", UserID: "u1", ClubID: "c1",
		Role: activity.RoleOrdinary, State: activity.MembershipActive,
	}))
	require.NoError(t, st.SaveEventRegistration(ctx, "m1", activity.EventRegistration{
		EventID: "e1", EventDate: time.Date(2025, time.June, 5, 18, 0, 0, 0, time.UTC),
		Attendance: activity.AttendancePartial,
	}))
	require.NoError(t, st.SaveSessionRecord(ctx, "m1", activity.SessionRecord{
		SessionID: "s1", At: time.Date(2025, time.June, 6, 18, 0, 0, 0, time.UTC),
		Status: activity.SessionPresent,
	}))
	require.NoError(t, st.SaveClubEvent(ctx, "c1", activity.EventMetrics{
		EventID: "e1", Name: "Open Tournament",
		Date:     time.Date(2025, time.June, 5, 18, 0, 0, 0, time.UTC),
		Feedback: d("4"), CheckinRate: d("0.5"),
	}))

	// base = 0.5*0.5 + 0.2*1 + 0.2*0 + 0.1*1 = 0.55, NORMAL x1.0
	rec, err := e.RecalcMember(ctx, "m1", 2025, 6)
	require.NoError(t, err)
	require.True(t, d("0.55").Equal(rec.BaseScore), "BaseScore = %s", rec.BaseScore)
	require.True(t, d("55").Equal(rec.FinalScore), "FinalScore = %s", rec.FinalScore)

	// final = 0.30*10 + 0.25*80 + 0.15*50 + 0.20*55 = 41.5,
	// award = 41.5 * 0.9 (SMALL) * 0.9 (BASE) = 33.62 -> pool 1681
	clubRec, err := e.RecalcClub(ctx, "c1", 2025, 6)
	require.NoError(t, err)
	require.True(t, d("41.5").Equal(clubRec.FinalScore), "FinalScore = %s", clubRec.FinalScore)
	require.True(t, d("33.62").Equal(clubRec.AwardScore), "AwardScore = %s", clubRec.AwardScore)
	require.Equal(t, int64(1681), clubRec.RewardPoints)

	require.NoError(t, e.Approve(ctx, "c1", 2025, 6, "treasurer"))
	clubBalance, err := st.Balance(ctx, wallet.ClubOwner("c1"))
	require.NoError(t, err)
	require.Equal(t, int64(1681), clubBalance)

	res, err := e.Distribute(ctx, "c1", 2025, 6, "treasurer")
	require.NoError(t, err)
	require.Equal(t, int64(1681), res.Distributed)
	require.Zero(t, res.Remainder)

	userBalance, err := st.Balance(ctx, wallet.UserOwner("u1"))
	require.NoError(t, err)
	require.Equal(t, int64(1681), userBalance)
	clubBalance, err = st.Balance(ctx, wallet.ClubOwner("c1"))
	require.NoError(t, err)
	require.Zero(t, clubBalance)
}
