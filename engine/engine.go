/*
Package engine orchestrates the monthly activity and reward workflow.

PURPOSE:
  Wires the pure scoring core (activity), the tier resolver (policy), and
  the wallet ledger (wallet) onto persistent storage. Every externally
  meaningful operation of the subsystem lives here:

    RecalcMember / RecalcClub / RecalcAll   idempotent recomputation
    Lock / Approve                          open -> locked state machine
    Distribute                              single-shot reward payout
    Ranking / Trending / History / ...      read-only projections
    ResetMonth                              admin reset of an unlocked month

CONCURRENCY MODEL:
  The engine is synchronous and transactional per unit of work: one call
  for one subject and one period runs as a single read-aggregate-write
  transaction. The lock flag on the club's monthly row is the primary
  guard; every mutating operation re-checks it inside its transaction, so
  two racing callers cannot both recompute or both distribute.

SEE ALSO:
  - recalc.go: Recomputation operations
  - workflow.go: Lock/approve transitions
  - distribute.go: Reward distributor
  - report.go: Ranking/trend read paths
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/clubhub/activity-engine/activity"
	"github.com/clubhub/activity-engine/policy"
	"github.com/clubhub/activity-engine/wallet"
)

// =============================================================================
// STORAGE CONTRACTS
// =============================================================================

// RecordStore persists memberships, clubs, and the monthly activity rows.
// Upserts enforce the one-row-per-subject-per-month invariant; lock
// enforcement is the engine's job, checked inside transactions.
type RecordStore interface {
	Club(ctx context.Context, id activity.ClubID) (*activity.Club, error)
	Clubs(ctx context.Context) ([]activity.Club, error)

	Membership(ctx context.Context, id activity.MembershipID) (*activity.Membership, error)
	MembershipsByClub(ctx context.Context, clubID activity.ClubID) ([]activity.Membership, error)

	// SetMembershipMultiplier writes the denormalized convenience value.
	// Callers invoke it in the same transaction as the row upsert so the
	// two never disagree.
	SetMembershipMultiplier(ctx context.Context, id activity.MembershipID, m decimal.Decimal) error

	MemberRecord(ctx context.Context, id activity.MembershipID, year int, month time.Month) (*activity.MemberMonthlyActivity, error)
	UpsertMemberRecord(ctx context.Context, rec activity.MemberMonthlyActivity) error
	MemberRecordsByClub(ctx context.Context, clubID activity.ClubID, year int, month time.Month) ([]activity.MemberMonthlyActivity, error)

	ClubRecord(ctx context.Context, clubID activity.ClubID, year int, month time.Month) (*activity.ClubMonthlyActivity, error)
	UpsertClubRecord(ctx context.Context, rec activity.ClubMonthlyActivity) error
	ClubRecords(ctx context.Context, year int, month time.Month) ([]activity.ClubMonthlyActivity, error)
	ClubRecordsForYear(ctx context.Context, clubID activity.ClubID, year int) ([]activity.ClubMonthlyActivity, error)

	DeleteMemberRecords(ctx context.Context, clubID activity.ClubID, year int, month time.Month) error
	DeleteClubRecord(ctx context.Context, clubID activity.ClubID, year int, month time.Month) error
}

// Store bundles records and wallets behind one transaction boundary.
// WithTx executes fn against a transactional view; an error rolls back
// every write fn performed, including wallet movements.
type Store interface {
	RecordStore
	wallet.Store

	WithTx(ctx context.Context, fn func(Store) error) error
}

// Source exposes the raw behavioral records the aggregators scan. It is
// owned by the surrounding platform and read-only here; implementations
// may back it with the same database as the Store.
type Source interface {
	EventRegistrations(ctx context.Context, id activity.MembershipID, w activity.MonthWindow) ([]activity.EventRegistration, error)
	SessionRecords(ctx context.Context, id activity.MembershipID, w activity.MonthWindow) ([]activity.SessionRecord, error)
	StaffEvaluations(ctx context.Context, id activity.MembershipID, w activity.MonthWindow) ([]activity.StaffEvaluation, error)
	Penalties(ctx context.Context, id activity.MembershipID, w activity.MonthWindow) ([]activity.Penalty, error)

	// ClubEvents returns the completed events a club hosted in the window,
	// with their aggregated feedback and check-in metrics.
	ClubEvents(ctx context.Context, clubID activity.ClubID, w activity.MonthWindow) ([]activity.EventMetrics, error)
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine executes the monthly activity and reward operations.
type Engine struct {
	Store    Store
	Source   Source
	Policies *policy.Resolver
	Notifier Notifier
	Log      *logrus.Logger

	// Now is swappable for deterministic tests.
	Now func() time.Time
}

// New creates an engine with a no-op notifier and the standard logger.
func New(store Store, source Source, policies *policy.Resolver) *Engine {
	return &Engine{
		Store:    store,
		Source:   source,
		Policies: policies,
		Notifier: NopNotifier{},
		Log:      logrus.StandardLogger(),
		Now:      time.Now,
	}
}

// sourceFor returns the Source to use inside an open transaction. When
// the transactional view also serves raw records (the SQL store does,
// backing both contracts with one database), reads must go through it:
// a pooled read outside the transaction would wait on the connection the
// transaction itself holds.
func (e *Engine) sourceFor(s Store) Source {
	if src, ok := s.(Source); ok {
		return src
	}
	return e.Source
}

// lockGuard returns a Conflict error when the club's monthly record is
// locked. Called inside transactions before any recomputation writes.
func lockGuard(rec *activity.ClubMonthlyActivity) error {
	if rec == nil || !rec.Locked {
		return nil
	}
	lockedAt := time.Time{}
	if rec.LockedAt != nil {
		lockedAt = *rec.LockedAt
	}
	return &activity.LockedError{
		ClubID:   rec.ClubID,
		Year:     rec.Year,
		Month:    rec.Month,
		LockedBy: rec.LockedBy,
		LockedAt: lockedAt,
	}
}
