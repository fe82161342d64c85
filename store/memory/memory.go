/*
Package memory provides an in-memory Store and Source (for testing/dev).

PURPOSE:
  Implements every storage contract of the engine package against plain
  maps. WithTx is simulated with a full snapshot + rollback-on-error, the
  same all-or-nothing semantics the SQL store gets from real transactions.

LOCKING:
  Record and wallet state share one mutex; WithTx holds it for the whole
  transaction so a racing caller observes either none or all of its
  writes. Raw behavioral source data has its own lock because the engine
  reads the Source while a record transaction is open.
*/
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clubhub/activity-engine/activity"
	"github.com/clubhub/activity-engine/engine"
	"github.com/clubhub/activity-engine/wallet"
)

// =============================================================================
// KEYS AND STATE
// =============================================================================

type memberKey struct {
	ID    activity.MembershipID
	Year  int
	Month time.Month
}

type clubKey struct {
	ID    activity.ClubID
	Year  int
	Month time.Month
}

type state struct {
	clubs         map[activity.ClubID]activity.Club
	clubOrder     []activity.ClubID
	memberships   map[activity.MembershipID]activity.Membership
	memberRecords map[memberKey]activity.MemberMonthlyActivity
	clubRecords   map[clubKey]activity.ClubMonthlyActivity
	balances      map[wallet.Owner]int64
	ledgers       map[wallet.Owner][]wallet.Transaction
}

func newState() *state {
	return &state{
		clubs:         make(map[activity.ClubID]activity.Club),
		memberships:   make(map[activity.MembershipID]activity.Membership),
		memberRecords: make(map[memberKey]activity.MemberMonthlyActivity),
		clubRecords:   make(map[clubKey]activity.ClubMonthlyActivity),
		balances:      make(map[wallet.Owner]int64),
		ledgers:       make(map[wallet.Owner][]wallet.Transaction),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.clubs {
		c.clubs[k] = v
	}
	c.clubOrder = append([]activity.ClubID{}, s.clubOrder...)
	for k, v := range s.memberships {
		c.memberships[k] = v
	}
	for k, v := range s.memberRecords {
		c.memberRecords[k] = v
	}
	for k, v := range s.clubRecords {
		c.clubRecords[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.ledgers {
		c.ledgers[k] = append([]wallet.Transaction{}, v...)
	}
	return c
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// Store is the in-memory engine.Store implementation.
type Store struct {
	mu sync.Mutex
	st *state
}

// Compile-time interface checks.
var _ engine.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{st: newState()}
}

// --- seeding (tests/dev) ---

func (m *Store) AddClub(c activity.Club) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.st.clubs[c.ID]; !exists {
		m.st.clubOrder = append(m.st.clubOrder, c.ID)
	}
	m.st.clubs[c.ID] = c
}

func (m *Store) AddMembership(ms activity.Membership) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.memberships[ms.ID] = ms
}

// WithTx snapshots state, runs fn against a transactional view, and
// restores the snapshot when fn fails.
func (m *Store) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(&txView{st: m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// Exported methods lock and delegate; the txView reuses the same logic
// with the lock already held by WithTx.

func (m *Store) Club(ctx context.Context, id activity.ClubID) (*activity.Club, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.club(id)
}

func (m *Store) Clubs(ctx context.Context) ([]activity.Club, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.clubList(), nil
}

func (m *Store) Membership(ctx context.Context, id activity.MembershipID) (*activity.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.membership(id)
}

func (m *Store) MembershipsByClub(ctx context.Context, clubID activity.ClubID) ([]activity.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.membershipsByClub(clubID), nil
}

func (m *Store) SetMembershipMultiplier(ctx context.Context, id activity.MembershipID, mult decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.setMultiplier(id, mult)
}

func (m *Store) MemberRecord(ctx context.Context, id activity.MembershipID, year int, month time.Month) (*activity.MemberMonthlyActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.memberRecord(id, year, month)
}

func (m *Store) UpsertMemberRecord(ctx context.Context, rec activity.MemberMonthlyActivity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.upsertMemberRecord(rec)
	return nil
}

func (m *Store) MemberRecordsByClub(ctx context.Context, clubID activity.ClubID, year int, month time.Month) ([]activity.MemberMonthlyActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.memberRecordsByClub(clubID, year, month), nil
}

func (m *Store) ClubRecord(ctx context.Context, clubID activity.ClubID, year int, month time.Month) (*activity.ClubMonthlyActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.clubRecord(clubID, year, month)
}

func (m *Store) UpsertClubRecord(ctx context.Context, rec activity.ClubMonthlyActivity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.upsertClubRecord(rec)
	return nil
}

func (m *Store) ClubRecords(ctx context.Context, year int, month time.Month) ([]activity.ClubMonthlyActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.clubRecordsForPeriod(year, month), nil
}

func (m *Store) ClubRecordsForYear(ctx context.Context, clubID activity.ClubID, year int) ([]activity.ClubMonthlyActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.clubRecordsForYear(clubID, year), nil
}

func (m *Store) DeleteMemberRecords(ctx context.Context, clubID activity.ClubID, year int, month time.Month) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.deleteMemberRecords(clubID, year, month)
	return nil
}

func (m *Store) DeleteClubRecord(ctx context.Context, clubID activity.ClubID, year int, month time.Month) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.st.clubRecords, clubKey{ID: clubID, Year: year, Month: month})
	return nil
}

func (m *Store) Balance(ctx context.Context, owner wallet.Owner) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.balances[owner], nil
}

func (m *Store) Credit(ctx context.Context, owner wallet.Owner, amount int64, e wallet.Entry) (wallet.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.credit(owner, amount, e)
}

func (m *Store) Debit(ctx context.Context, owner wallet.Owner, amount int64, e wallet.Entry) (wallet.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.debit(owner, amount, e)
}

func (m *Store) AppendEntry(ctx context.Context, owner wallet.Owner, amount int64, e wallet.Entry) (wallet.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.append(owner, amount, e), nil
}

func (m *Store) Transactions(ctx context.Context, owner wallet.Owner) ([]wallet.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]wallet.Transaction{}, m.st.ledgers[owner]...), nil
}

// =============================================================================
// TRANSACTIONAL VIEW - Same state, lock already held
// =============================================================================

type txView struct {
	st *state
}

var _ engine.Store = (*txView)(nil)

// Nested transactions just run in the enclosing one.
func (t *txView) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	return fn(t)
}

func (t *txView) Club(_ context.Context, id activity.ClubID) (*activity.Club, error) {
	return t.st.club(id)
}

func (t *txView) Clubs(_ context.Context) ([]activity.Club, error) {
	return t.st.clubList(), nil
}

func (t *txView) Membership(_ context.Context, id activity.MembershipID) (*activity.Membership, error) {
	return t.st.membership(id)
}

func (t *txView) MembershipsByClub(_ context.Context, clubID activity.ClubID) ([]activity.Membership, error) {
	return t.st.membershipsByClub(clubID), nil
}

func (t *txView) SetMembershipMultiplier(_ context.Context, id activity.MembershipID, mult decimal.Decimal) error {
	return t.st.setMultiplier(id, mult)
}

func (t *txView) MemberRecord(_ context.Context, id activity.MembershipID, year int, month time.Month) (*activity.MemberMonthlyActivity, error) {
	return t.st.memberRecord(id, year, month)
}

func (t *txView) UpsertMemberRecord(_ context.Context, rec activity.MemberMonthlyActivity) error {
	t.st.upsertMemberRecord(rec)
	return nil
}

func (t *txView) MemberRecordsByClub(_ context.Context, clubID activity.ClubID, year int, month time.Month) ([]activity.MemberMonthlyActivity, error) {
	return t.st.memberRecordsByClub(clubID, year, month), nil
}

func (t *txView) ClubRecord(_ context.Context, clubID activity.ClubID, year int, month time.Month) (*activity.ClubMonthlyActivity, error) {
	return t.st.clubRecord(clubID, year, month)
}

func (t *txView) UpsertClubRecord(_ context.Context, rec activity.ClubMonthlyActivity) error {
	t.st.upsertClubRecord(rec)
	return nil
}

func (t *txView) ClubRecords(_ context.Context, year int, month time.Month) ([]activity.ClubMonthlyActivity, error) {
	return t.st.clubRecordsForPeriod(year, month), nil
}

func (t *txView) ClubRecordsForYear(_ context.Context, clubID activity.ClubID, year int) ([]activity.ClubMonthlyActivity, error) {
	return t.st.clubRecordsForYear(clubID, year), nil
}

func (t *txView) DeleteMemberRecords(_ context.Context, clubID activity.ClubID, year int, month time.Month) error {
	t.st.deleteMemberRecords(clubID, year, month)
	return nil
}

func (t *txView) DeleteClubRecord(_ context.Context, clubID activity.ClubID, year int, month time.Month) error {
	delete(t.st.clubRecords, clubKey{ID: clubID, Year: year, Month: month})
	return nil
}

func (t *txView) Balance(_ context.Context, owner wallet.Owner) (int64, error) {
	return t.st.balances[owner], nil
}

func (t *txView) Credit(_ context.Context, owner wallet.Owner, amount int64, e wallet.Entry) (wallet.Transaction, error) {
	return t.st.credit(owner, amount, e)
}

func (t *txView) Debit(_ context.Context, owner wallet.Owner, amount int64, e wallet.Entry) (wallet.Transaction, error) {
	return t.st.debit(owner, amount, e)
}

func (t *txView) AppendEntry(_ context.Context, owner wallet.Owner, amount int64, e wallet.Entry) (wallet.Transaction, error) {
	return t.st.append(owner, amount, e), nil
}

func (t *txView) Transactions(_ context.Context, owner wallet.Owner) ([]wallet.Transaction, error) {
	return append([]wallet.Transaction{}, t.st.ledgers[owner]...), nil
}

// =============================================================================
// STATE LOGIC - Shared by Store and txView
// =============================================================================

func (s *state) club(id activity.ClubID) (*activity.Club, error) {
	c, ok := s.clubs[id]
	if !ok {
		return nil, fmt.Errorf("club %s: %w", id, activity.ErrClubNotFound)
	}
	return &c, nil
}

func (s *state) clubList() []activity.Club {
	out := make([]activity.Club, 0, len(s.clubOrder))
	for _, id := range s.clubOrder {
		out = append(out, s.clubs[id])
	}
	return out
}

func (s *state) membership(id activity.MembershipID) (*activity.Membership, error) {
	m, ok := s.memberships[id]
	if !ok {
		return nil, fmt.Errorf("membership %s: %w", id, activity.ErrMembershipNotFound)
	}
	return &m, nil
}

func (s *state) membershipsByClub(clubID activity.ClubID) []activity.Membership {
	var out []activity.Membership
	for _, m := range s.memberships {
		if m.ClubID == clubID {
			out = append(out, m)
		}
	}
	// Map iteration is unordered; callers rely on stable processing order.
	sortMemberships(out)
	return out
}

func (s *state) setMultiplier(id activity.MembershipID, mult decimal.Decimal) error {
	m, ok := s.memberships[id]
	if !ok {
		return fmt.Errorf("membership %s: %w", id, activity.ErrMembershipNotFound)
	}
	m.CurrentMultiplier = mult
	s.memberships[id] = m
	return nil
}

func (s *state) memberRecord(id activity.MembershipID, year int, month time.Month) (*activity.MemberMonthlyActivity, error) {
	rec, ok := s.memberRecords[memberKey{ID: id, Year: year, Month: month}]
	if !ok {
		return nil, fmt.Errorf("member record %s %d-%02d: %w", id, year, month, activity.ErrRecordNotFound)
	}
	return &rec, nil
}

func (s *state) upsertMemberRecord(rec activity.MemberMonthlyActivity) {
	s.memberRecords[memberKey{ID: rec.MembershipID, Year: rec.Year, Month: rec.Month}] = rec
}

func (s *state) memberRecordsByClub(clubID activity.ClubID, year int, month time.Month) []activity.MemberMonthlyActivity {
	var out []activity.MemberMonthlyActivity
	for k, rec := range s.memberRecords {
		if rec.ClubID == clubID && k.Year == year && k.Month == month {
			out = append(out, rec)
		}
	}
	sortMemberRecords(out)
	return out
}

func (s *state) clubRecord(clubID activity.ClubID, year int, month time.Month) (*activity.ClubMonthlyActivity, error) {
	rec, ok := s.clubRecords[clubKey{ID: clubID, Year: year, Month: month}]
	if !ok {
		return nil, fmt.Errorf("club record %s %d-%02d: %w", clubID, year, month, activity.ErrRecordNotFound)
	}
	return &rec, nil
}

func (s *state) upsertClubRecord(rec activity.ClubMonthlyActivity) {
	s.clubRecords[clubKey{ID: rec.ClubID, Year: rec.Year, Month: rec.Month}] = rec
}

func (s *state) clubRecordsForPeriod(year int, month time.Month) []activity.ClubMonthlyActivity {
	var out []activity.ClubMonthlyActivity
	for k, rec := range s.clubRecords {
		if k.Year == year && k.Month == month {
			out = append(out, rec)
		}
	}
	sortClubRecords(out)
	return out
}

func (s *state) clubRecordsForYear(clubID activity.ClubID, year int) []activity.ClubMonthlyActivity {
	var out []activity.ClubMonthlyActivity
	for k, rec := range s.clubRecords {
		if k.ID == clubID && k.Year == year {
			out = append(out, rec)
		}
	}
	sortClubRecords(out)
	return out
}

func (s *state) deleteMemberRecords(clubID activity.ClubID, year int, month time.Month) {
	for k, rec := range s.memberRecords {
		if rec.ClubID == clubID && k.Year == year && k.Month == month {
			delete(s.memberRecords, k)
		}
	}
}

func (s *state) credit(owner wallet.Owner, amount int64, e wallet.Entry) (wallet.Transaction, error) {
	if amount <= 0 {
		return wallet.Transaction{}, wallet.ErrInvalidAmount
	}
	s.balances[owner] += amount
	return s.append(owner, amount, e), nil
}

func (s *state) debit(owner wallet.Owner, amount int64, e wallet.Entry) (wallet.Transaction, error) {
	if amount <= 0 {
		return wallet.Transaction{}, wallet.ErrInvalidAmount
	}
	if s.balances[owner] < amount {
		return wallet.Transaction{}, &wallet.InsufficientFundsError{
			Owner:     owner,
			Available: s.balances[owner],
			Requested: amount,
		}
	}
	s.balances[owner] -= amount
	return s.append(owner, -amount, e), nil
}

func (s *state) append(owner wallet.Owner, amount int64, e wallet.Entry) wallet.Transaction {
	tx := wallet.Transaction{
		ID:          uuid.NewString(),
		Owner:       owner,
		Amount:      amount,
		Type:        e.Type,
		Description: e.Description,
		Reference:   e.Reference,
		CreatedAt:   time.Now().UTC(),
	}
	s.ledgers[owner] = append(s.ledgers[owner], tx)
	return tx
}
