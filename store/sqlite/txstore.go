/*
txstore.go - Transactional view handed to WithTx callbacks

PURPOSE:
  Wraps one open *sql.Tx and replays every store operation against it.
  The parent's query helpers all take a dbtx, so the delegation here is
  mechanical. The WithTx caller already holds the store mutex.
*/
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clubhub/activity-engine/activity"
	"github.com/clubhub/activity-engine/engine"
	"github.com/clubhub/activity-engine/wallet"
)

type txStore struct {
	tx     *sql.Tx
	parent *Store
}

var _ engine.Store = (*txStore)(nil)
var _ engine.Source = (*txStore)(nil)

// Nested transactions just run in the enclosing one.
func (ts *txStore) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	return fn(ts)
}

func (ts *txStore) Club(ctx context.Context, id activity.ClubID) (*activity.Club, error) {
	return ts.parent.getClub(ctx, ts.tx, id)
}

func (ts *txStore) Clubs(ctx context.Context) ([]activity.Club, error) {
	return ts.parent.listClubs(ctx, ts.tx)
}

func (ts *txStore) Membership(ctx context.Context, id activity.MembershipID) (*activity.Membership, error) {
	return ts.parent.getMembership(ctx, ts.tx, id)
}

func (ts *txStore) MembershipsByClub(ctx context.Context, clubID activity.ClubID) ([]activity.Membership, error) {
	return ts.parent.membershipsByClub(ctx, ts.tx, clubID)
}

func (ts *txStore) SetMembershipMultiplier(ctx context.Context, id activity.MembershipID, m decimal.Decimal) error {
	return ts.parent.setMultiplier(ctx, ts.tx, id, m)
}

func (ts *txStore) MemberRecord(ctx context.Context, id activity.MembershipID, year int, month time.Month) (*activity.MemberMonthlyActivity, error) {
	return ts.parent.getMemberRecord(ctx, ts.tx, id, year, month)
}

func (ts *txStore) UpsertMemberRecord(ctx context.Context, rec activity.MemberMonthlyActivity) error {
	return ts.parent.upsertMemberRecord(ctx, ts.tx, rec)
}

func (ts *txStore) MemberRecordsByClub(ctx context.Context, clubID activity.ClubID, year int, month time.Month) ([]activity.MemberMonthlyActivity, error) {
	return ts.parent.memberRecordsByClub(ctx, ts.tx, clubID, year, month)
}

func (ts *txStore) ClubRecord(ctx context.Context, clubID activity.ClubID, year int, month time.Month) (*activity.ClubMonthlyActivity, error) {
	return ts.parent.getClubRecord(ctx, ts.tx, clubID, year, month)
}

func (ts *txStore) UpsertClubRecord(ctx context.Context, rec activity.ClubMonthlyActivity) error {
	return ts.parent.upsertClubRecord(ctx, ts.tx, rec)
}

func (ts *txStore) ClubRecords(ctx context.Context, year int, month time.Month) ([]activity.ClubMonthlyActivity, error) {
	return ts.parent.clubRecordsForPeriod(ctx, ts.tx, year, month)
}

func (ts *txStore) ClubRecordsForYear(ctx context.Context, clubID activity.ClubID, year int) ([]activity.ClubMonthlyActivity, error) {
	return ts.parent.clubRecordsForYear(ctx, ts.tx, clubID, year)
}

func (ts *txStore) DeleteMemberRecords(ctx context.Context, clubID activity.ClubID, year int, month time.Month) error {
	return ts.parent.deleteMemberRecords(ctx, ts.tx, clubID, year, month)
}

func (ts *txStore) DeleteClubRecord(ctx context.Context, clubID activity.ClubID, year int, month time.Month) error {
	return ts.parent.deleteClubRecord(ctx, ts.tx, clubID, year, month)
}

func (ts *txStore) Balance(ctx context.Context, owner wallet.Owner) (int64, error) {
	return ts.parent.balance(ctx, ts.tx, owner)
}

func (ts *txStore) Credit(ctx context.Context, owner wallet.Owner, amount int64, e wallet.Entry) (wallet.Transaction, error) {
	return ts.parent.credit(ctx, ts.tx, owner, amount, e)
}

func (ts *txStore) Debit(ctx context.Context, owner wallet.Owner, amount int64, e wallet.Entry) (wallet.Transaction, error) {
	return ts.parent.debit(ctx, ts.tx, owner, amount, e)
}

func (ts *txStore) AppendEntry(ctx context.Context, owner wallet.Owner, amount int64, e wallet.Entry) (wallet.Transaction, error) {
	return ts.parent.appendLedger(ctx, ts.tx, owner, amount, e)
}

func (ts *txStore) Transactions(ctx context.Context, owner wallet.Owner) ([]wallet.Transaction, error) {
	return ts.parent.transactions(ctx, ts.tx, owner)
}

// Source reads ride the open transaction. With the pool capped at one
// connection, a read on the parent's pool would block behind this
// transaction forever.

func (ts *txStore) EventRegistrations(ctx context.Context, id activity.MembershipID, w activity.MonthWindow) ([]activity.EventRegistration, error) {
	return ts.parent.eventRegistrations(ctx, ts.tx, id, w)
}

func (ts *txStore) SessionRecords(ctx context.Context, id activity.MembershipID, w activity.MonthWindow) ([]activity.SessionRecord, error) {
	return ts.parent.sessionRecords(ctx, ts.tx, id, w)
}

func (ts *txStore) StaffEvaluations(ctx context.Context, id activity.MembershipID, w activity.MonthWindow) ([]activity.StaffEvaluation, error) {
	return ts.parent.staffEvaluations(ctx, ts.tx, id, w)
}

func (ts *txStore) Penalties(ctx context.Context, id activity.MembershipID, w activity.MonthWindow) ([]activity.Penalty, error) {
	return ts.parent.penalties(ctx, ts.tx, id, w)
}

func (ts *txStore) ClubEvents(ctx context.Context, clubID activity.ClubID, w activity.MonthWindow) ([]activity.EventMetrics, error) {
	return ts.parent.clubEvents(ctx, ts.tx, clubID, w)
}
