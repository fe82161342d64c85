/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements engine.Store (records + wallets behind one transaction
  boundary), engine.Source (raw behavioral records), and multiplier
  policy persistence. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  clubs, memberships:              platform entities the engine reads
  event_registrations,
  session_records,
  staff_evaluations, penalties:    raw behavioral records (Source)
  club_events:                     per-event feedback/check-in metrics
  member_monthly_activity,
  club_monthly_activity:           one row per subject per month
  multiplier_policies:             tier configuration
  wallets, wallet_transactions:    balances plus the append-only ledger

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's single-writer
  model. WithTx holds the write lock for the whole database transaction.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block
  and crash recovery is cleaner.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - records.go: monthly activity rows, clubs, memberships
  - wallet.go: balances and the transaction ledger
  - source.go: behavioral record queries and policy persistence
  - store/memory: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/clubhub/activity-engine/engine"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ engine.Store = (*Store)(nil)
var _ engine.Source = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer, and a pooled second connection to a
	// ":memory:" path would see a different, empty database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Platform entities (read-mostly here)
	CREATE TABLE IF NOT EXISTS clubs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS memberships (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		club_id TEXT NOT NULL,
		role TEXT NOT NULL,
		state TEXT NOT NULL,
		current_multiplier TEXT NOT NULL DEFAULT '1'
	);

	CREATE INDEX IF NOT EXISTS idx_memberships_club
		ON memberships(club_id);

	-- Raw behavioral records (Source)
	CREATE TABLE IF NOT EXISTS event_registrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		membership_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		event_date TEXT NOT NULL,
		attendance TEXT NOT NULL,
		UNIQUE(membership_id, event_id)
	);

	CREATE INDEX IF NOT EXISTS idx_registrations_member_date
		ON event_registrations(membership_id, event_date);

	CREATE TABLE IF NOT EXISTS session_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		membership_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		at TEXT NOT NULL,
		status TEXT NOT NULL,
		UNIQUE(membership_id, session_id)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_member_date
		ON session_records(membership_id, at);

	CREATE TABLE IF NOT EXISTS staff_evaluations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		membership_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		event_date TEXT NOT NULL,
		grade TEXT NOT NULL,
		UNIQUE(membership_id, event_id)
	);

	CREATE INDEX IF NOT EXISTS idx_evaluations_member_date
		ON staff_evaluations(membership_id, event_date);

	CREATE TABLE IF NOT EXISTS penalties (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		membership_id TEXT NOT NULL,
		at TEXT NOT NULL,
		points INTEGER NOT NULL,
		reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_penalties_member_date
		ON penalties(membership_id, at);

	CREATE TABLE IF NOT EXISTS club_events (
		event_id TEXT PRIMARY KEY,
		club_id TEXT NOT NULL,
		name TEXT NOT NULL,
		date TEXT NOT NULL,
		feedback TEXT NOT NULL,
		checkin_rate TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_club_events_club_date
		ON club_events(club_id, date);

	-- Monthly activity rows (one per subject per month)
	CREATE TABLE IF NOT EXISTS member_monthly_activity (
		membership_id TEXT NOT NULL,
		club_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		events_registered INTEGER NOT NULL,
		events_attended TEXT NOT NULL,
		sessions_total INTEGER NOT NULL,
		sessions_present INTEGER NOT NULL,
		staff_average TEXT NOT NULL,
		penalty_points INTEGER NOT NULL,
		base_score TEXT NOT NULL,
		activity_level TEXT NOT NULL,
		multiplier TEXT NOT NULL,
		final_score TEXT NOT NULL,
		computed_at TEXT NOT NULL,
		PRIMARY KEY (membership_id, year, month)
	);

	CREATE INDEX IF NOT EXISTS idx_member_activity_club_period
		ON member_monthly_activity(club_id, year, month);

	CREATE TABLE IF NOT EXISTS club_monthly_activity (
		club_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		total_events INTEGER NOT NULL,
		avg_feedback TEXT NOT NULL,
		avg_checkin_rate TEXT NOT NULL,
		avg_member_score TEXT NOT NULL,
		staff_score TEXT NOT NULL,
		active_members INTEGER NOT NULL,
		final_score TEXT NOT NULL,
		award_score TEXT NOT NULL,
		award_level TEXT NOT NULL,
		reward_points INTEGER NOT NULL,
		locked BOOLEAN NOT NULL DEFAULT FALSE,
		locked_at TEXT,
		locked_by TEXT,
		approved BOOLEAN NOT NULL DEFAULT FALSE,
		distributed_at TEXT,
		distributed_by TEXT,
		computed_at TEXT NOT NULL,
		PRIMARY KEY (club_id, year, month)
	);

	CREATE INDEX IF NOT EXISTS idx_club_activity_period
		ON club_monthly_activity(year, month);

	-- Tier configuration
	CREATE TABLE IF NOT EXISTS multiplier_policies (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		dimension TEXT NOT NULL,
		min INTEGER NOT NULL,
		max INTEGER,
		multiplier TEXT NOT NULL,
		rule_name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE INDEX IF NOT EXISTS idx_policies_dimension
		ON multiplier_policies(target, dimension);

	-- Wallets: balances plus an append-only transaction ledger
	CREATE TABLE IF NOT EXISTS wallets (
		owner TEXT PRIMARY KEY,
		balance INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS wallet_transactions (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		amount INTEGER NOT NULL,
		tx_type TEXT NOT NULL,
		description TEXT,
		reference TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_wallet_tx_owner
		ON wallet_transactions(owner, created_at);
	CREATE INDEX IF NOT EXISTS idx_wallet_tx_reference
		ON wallet_transactions(reference) WHERE reference IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION BOUNDARY (engine.Store WithTx)
// =============================================================================

// dbtx is satisfied by both *sql.DB and *sql.Tx so every query helper can
// run inside or outside an explicit transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx executes fn within a database transaction. An error from fn
// rolls back every write, wallet movements included.
func (s *Store) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	f := t.Format(time.RFC3339Nano)
	return &f
}

func parseDecimal(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
