/*
source.go - Behavioral record queries and policy persistence

PURPOSE:
  The engine.Source side of the store: raw behavioral records scoped by
  month window, plus the multiplier policy table the resolver is built
  from at startup.

LOCKING:
  Every read helper takes a dbtx. Recomputation reads raw records through
  the transactional view (txstore.go), on the same connection as the open
  transaction; reads on the plain store go to the pool directly and need
  no extra locking, since ingestion writes are single statements.
*/
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/clubhub/activity-engine/activity"
	"github.com/clubhub/activity-engine/policy"
)

// =============================================================================
// INGESTION (writes)
// =============================================================================

// SaveEventRegistration upserts by (membership, event): re-ingesting a
// registration must correct the row, never inflate the registered count.
func (s *Store) SaveEventRegistration(ctx context.Context, id activity.MembershipID, r activity.EventRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO event_registrations (membership_id, event_id, event_date, attendance)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(membership_id, event_id) DO UPDATE SET
			event_date = excluded.event_date,
			attendance = excluded.attendance
	`
	_, err := s.db.ExecContext(ctx, query,
		id, r.EventID, r.EventDate.Format(time.RFC3339Nano), r.Attendance,
	)
	return err
}

// SaveSessionRecord upserts by (membership, session).
func (s *Store) SaveSessionRecord(ctx context.Context, id activity.MembershipID, r activity.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO session_records (membership_id, session_id, at, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(membership_id, session_id) DO UPDATE SET
			at = excluded.at,
			status = excluded.status
	`
	_, err := s.db.ExecContext(ctx, query,
		id, r.SessionID, r.At.Format(time.RFC3339Nano), r.Status,
	)
	return err
}

// SaveStaffEvaluation upserts by (membership, event): one evaluation per
// duty, a re-submitted grade replaces the previous one.
func (s *Store) SaveStaffEvaluation(ctx context.Context, id activity.MembershipID, ev activity.StaffEvaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO staff_evaluations (membership_id, event_id, event_date, grade)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(membership_id, event_id) DO UPDATE SET
			event_date = excluded.event_date,
			grade = excluded.grade
	`
	_, err := s.db.ExecContext(ctx, query,
		id, ev.EventID, ev.EventDate.Format(time.RFC3339Nano), ev.Grade,
	)
	return err
}

// SavePenalty appends. Penalties carry no natural key; each record is a
// distinct disciplinary delta.
func (s *Store) SavePenalty(ctx context.Context, id activity.MembershipID, p activity.Penalty) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO penalties (membership_id, at, points, reason) VALUES (?, ?, ?, ?)",
		id, p.At.Format(time.RFC3339Nano), p.Points, nullString(p.Reason),
	)
	return err
}

func (s *Store) SaveClubEvent(ctx context.Context, clubID activity.ClubID, ev activity.EventMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	eventID := ev.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	query := `
		INSERT INTO club_events (event_id, club_id, name, date, feedback, checkin_rate)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO UPDATE SET
			club_id = excluded.club_id,
			name = excluded.name,
			date = excluded.date,
			feedback = excluded.feedback,
			checkin_rate = excluded.checkin_rate
	`
	_, err := s.db.ExecContext(ctx, query,
		eventID, clubID, ev.Name, ev.Date.Format(time.RFC3339Nano),
		ev.Feedback.String(), ev.CheckinRate.String(),
	)
	return err
}

// =============================================================================
// SOURCE READS (engine.Source)
// =============================================================================

func (s *Store) EventRegistrations(ctx context.Context, id activity.MembershipID, w activity.MonthWindow) ([]activity.EventRegistration, error) {
	return s.eventRegistrations(ctx, s.db, id, w)
}

func (s *Store) eventRegistrations(ctx context.Context, q dbtx, id activity.MembershipID, w activity.MonthWindow) ([]activity.EventRegistration, error) {
	query := `
		SELECT event_id, event_date, attendance
		FROM event_registrations
		WHERE membership_id = ? AND event_date >= ? AND event_date < ?
		ORDER BY event_date ASC
	`
	from, to := windowBounds(w)
	rows, err := q.QueryContext(ctx, query, id, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []activity.EventRegistration
	for rows.Next() {
		var (
			r    activity.EventRegistration
			date string
		)
		if err := rows.Scan(&r.EventID, &date, &r.Attendance); err != nil {
			return nil, err
		}
		r.EventDate = parseTime(date)
		regs = append(regs, r)
	}
	return regs, rows.Err()
}

func (s *Store) SessionRecords(ctx context.Context, id activity.MembershipID, w activity.MonthWindow) ([]activity.SessionRecord, error) {
	return s.sessionRecords(ctx, s.db, id, w)
}

func (s *Store) sessionRecords(ctx context.Context, q dbtx, id activity.MembershipID, w activity.MonthWindow) ([]activity.SessionRecord, error) {
	query := `
		SELECT session_id, at, status
		FROM session_records
		WHERE membership_id = ? AND at >= ? AND at < ?
		ORDER BY at ASC
	`
	from, to := windowBounds(w)
	rows, err := q.QueryContext(ctx, query, id, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []activity.SessionRecord
	for rows.Next() {
		var (
			r  activity.SessionRecord
			at string
		)
		if err := rows.Scan(&r.SessionID, &at, &r.Status); err != nil {
			return nil, err
		}
		r.At = parseTime(at)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) StaffEvaluations(ctx context.Context, id activity.MembershipID, w activity.MonthWindow) ([]activity.StaffEvaluation, error) {
	return s.staffEvaluations(ctx, s.db, id, w)
}

func (s *Store) staffEvaluations(ctx context.Context, q dbtx, id activity.MembershipID, w activity.MonthWindow) ([]activity.StaffEvaluation, error) {
	query := `
		SELECT event_id, event_date, grade
		FROM staff_evaluations
		WHERE membership_id = ? AND event_date >= ? AND event_date < ?
		ORDER BY event_date ASC
	`
	from, to := windowBounds(w)
	rows, err := q.QueryContext(ctx, query, id, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evals []activity.StaffEvaluation
	for rows.Next() {
		var (
			ev   activity.StaffEvaluation
			date string
		)
		if err := rows.Scan(&ev.EventID, &date, &ev.Grade); err != nil {
			return nil, err
		}
		ev.EventDate = parseTime(date)
		evals = append(evals, ev)
	}
	return evals, rows.Err()
}

func (s *Store) Penalties(ctx context.Context, id activity.MembershipID, w activity.MonthWindow) ([]activity.Penalty, error) {
	return s.penalties(ctx, s.db, id, w)
}

func (s *Store) penalties(ctx context.Context, q dbtx, id activity.MembershipID, w activity.MonthWindow) ([]activity.Penalty, error) {
	query := `
		SELECT at, points, reason
		FROM penalties
		WHERE membership_id = ? AND at >= ? AND at < ?
		ORDER BY at ASC
	`
	from, to := windowBounds(w)
	rows, err := q.QueryContext(ctx, query, id, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var penalties []activity.Penalty
	for rows.Next() {
		var (
			p      activity.Penalty
			at     string
			reason sql.NullString
		)
		if err := rows.Scan(&at, &p.Points, &reason); err != nil {
			return nil, err
		}
		p.At = parseTime(at)
		p.Reason = reason.String
		penalties = append(penalties, p)
	}
	return penalties, rows.Err()
}

func (s *Store) ClubEvents(ctx context.Context, clubID activity.ClubID, w activity.MonthWindow) ([]activity.EventMetrics, error) {
	return s.clubEvents(ctx, s.db, clubID, w)
}

func (s *Store) clubEvents(ctx context.Context, q dbtx, clubID activity.ClubID, w activity.MonthWindow) ([]activity.EventMetrics, error) {
	query := `
		SELECT event_id, name, date, feedback, checkin_rate
		FROM club_events
		WHERE club_id = ? AND date >= ? AND date < ?
		ORDER BY date ASC
	`
	from, to := windowBounds(w)
	rows, err := q.QueryContext(ctx, query, clubID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []activity.EventMetrics
	for rows.Next() {
		var (
			ev       activity.EventMetrics
			date     string
			feedback string
			checkin  string
		)
		if err := rows.Scan(&ev.EventID, &ev.Name, &date, &feedback, &checkin); err != nil {
			return nil, err
		}
		ev.Date = parseTime(date)
		ev.Feedback = parseDecimal(feedback)
		ev.CheckinRate = parseDecimal(checkin)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// windowBounds expands a month window into the two query placeholders.
func windowBounds(w activity.MonthWindow) (string, string) {
	return w.Start().Format(time.RFC3339Nano), w.End().Format(time.RFC3339Nano)
}

// =============================================================================
// MULTIPLIER POLICIES
// =============================================================================

// SavePolicy upserts one multiplier policy row.
func (s *Store) SavePolicy(ctx context.Context, p policy.MultiplierPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO multiplier_policies (id, target, dimension, min, max, multiplier, rule_name, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			target = excluded.target,
			dimension = excluded.dimension,
			min = excluded.min,
			max = excluded.max,
			multiplier = excluded.multiplier,
			rule_name = excluded.rule_name,
			active = excluded.active
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Target, p.Dimension, p.Min, p.Max, p.Multiplier.String(), p.RuleName, p.Active,
	)
	return err
}

// Policies returns every stored multiplier policy, active or not. The
// resolver drops inactive ones itself.
func (s *Store) Policies(ctx context.Context) ([]policy.MultiplierPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, target, dimension, min, max, multiplier, rule_name, active FROM multiplier_policies ORDER BY dimension, min",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []policy.MultiplierPolicy
	for rows.Next() {
		var (
			p    policy.MultiplierPolicy
			mult string
		)
		if err := rows.Scan(&p.ID, &p.Target, &p.Dimension, &p.Min, &p.Max, &mult, &p.RuleName, &p.Active); err != nil {
			return nil, err
		}
		p.Multiplier = parseDecimal(mult)
		policies = append(policies, p)
	}
	return policies, rows.Err()
}
