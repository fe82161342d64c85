/*
records.go - Clubs, memberships, and the monthly activity rows

PURPOSE:
  Read paths for the platform entities the engine consumes plus the
  upserts enforcing the one-row-per-subject-per-month invariant. Every
  query helper takes a dbtx so it runs identically inside WithTx.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clubhub/activity-engine/activity"
)

// =============================================================================
// CLUBS AND MEMBERSHIPS
// =============================================================================

// SaveClub upserts a club. Used by seeding and the admin surface; the
// engine itself never writes clubs.
func (s *Store) SaveClub(ctx context.Context, c activity.Club) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO clubs (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`
	_, err := s.db.ExecContext(ctx, query, c.ID, c.Name)
	return err
}

// SaveMembership upserts a membership.
func (s *Store) SaveMembership(ctx context.Context, m activity.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO memberships (id, user_id, club_id, role, state, current_multiplier)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			club_id = excluded.club_id,
			role = excluded.role,
			state = excluded.state
	`
	mult := m.CurrentMultiplier
	if mult.IsZero() {
		mult = decimal.NewFromInt(1)
	}
	_, err := s.db.ExecContext(ctx, query, m.ID, m.UserID, m.ClubID, m.Role, m.State, mult.String())
	return err
}

func (s *Store) Club(ctx context.Context, id activity.ClubID) (*activity.Club, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getClub(ctx, s.db, id)
}

func (s *Store) getClub(ctx context.Context, q dbtx, id activity.ClubID) (*activity.Club, error) {
	var c activity.Club
	err := q.QueryRowContext(ctx, "SELECT id, name FROM clubs WHERE id = ?", id).
		Scan(&c.ID, &c.Name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("club %s: %w", id, activity.ErrClubNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) Clubs(ctx context.Context) ([]activity.Club, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listClubs(ctx, s.db)
}

func (s *Store) listClubs(ctx context.Context, q dbtx) ([]activity.Club, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, name FROM clubs ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clubs []activity.Club
	for rows.Next() {
		var c activity.Club
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		clubs = append(clubs, c)
	}
	return clubs, rows.Err()
}

func (s *Store) Membership(ctx context.Context, id activity.MembershipID) (*activity.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getMembership(ctx, s.db, id)
}

func (s *Store) getMembership(ctx context.Context, q dbtx, id activity.MembershipID) (*activity.Membership, error) {
	var (
		m    activity.Membership
		mult string
	)
	err := q.QueryRowContext(ctx,
		"SELECT id, user_id, club_id, role, state, current_multiplier FROM memberships WHERE id = ?",
		id,
	).Scan(&m.ID, &m.UserID, &m.ClubID, &m.Role, &m.State, &mult)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("membership %s: %w", id, activity.ErrMembershipNotFound)
	}
	if err != nil {
		return nil, err
	}
	m.CurrentMultiplier = parseDecimal(mult)
	return &m, nil
}

func (s *Store) MembershipsByClub(ctx context.Context, clubID activity.ClubID) ([]activity.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.membershipsByClub(ctx, s.db, clubID)
}

func (s *Store) membershipsByClub(ctx context.Context, q dbtx, clubID activity.ClubID) ([]activity.Membership, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, user_id, club_id, role, state, current_multiplier FROM memberships WHERE club_id = ? ORDER BY id",
		clubID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []activity.Membership
	for rows.Next() {
		var (
			m    activity.Membership
			mult string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.ClubID, &m.Role, &m.State, &mult); err != nil {
			return nil, err
		}
		m.CurrentMultiplier = parseDecimal(mult)
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

func (s *Store) SetMembershipMultiplier(ctx context.Context, id activity.MembershipID, m decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setMultiplier(ctx, s.db, id, m)
}

func (s *Store) setMultiplier(ctx context.Context, q dbtx, id activity.MembershipID, m decimal.Decimal) error {
	res, err := q.ExecContext(ctx,
		"UPDATE memberships SET current_multiplier = ? WHERE id = ?",
		m.String(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("membership %s: %w", id, activity.ErrMembershipNotFound)
	}
	return nil
}

// =============================================================================
// MEMBER MONTHLY ACTIVITY
// =============================================================================

const memberRecordColumns = `membership_id, club_id, year, month,
	events_registered, events_attended, sessions_total, sessions_present,
	staff_average, penalty_points, base_score, activity_level, multiplier,
	final_score, computed_at`

func (s *Store) MemberRecord(ctx context.Context, id activity.MembershipID, year int, month time.Month) (*activity.MemberMonthlyActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getMemberRecord(ctx, s.db, id, year, month)
}

func (s *Store) getMemberRecord(ctx context.Context, q dbtx, id activity.MembershipID, year int, month time.Month) (*activity.MemberMonthlyActivity, error) {
	query := "SELECT " + memberRecordColumns + `
		FROM member_monthly_activity
		WHERE membership_id = ? AND year = ? AND month = ?`

	rows, err := q.QueryContext(ctx, query, id, year, int(month))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("member record %s %d-%02d: %w", id, year, month, activity.ErrRecordNotFound)
	}
	rec, err := scanMemberRecord(rows)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) UpsertMemberRecord(ctx context.Context, rec activity.MemberMonthlyActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertMemberRecord(ctx, s.db, rec)
}

func (s *Store) upsertMemberRecord(ctx context.Context, q dbtx, rec activity.MemberMonthlyActivity) error {
	query := `
		INSERT INTO member_monthly_activity (` + memberRecordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(membership_id, year, month) DO UPDATE SET
			club_id = excluded.club_id,
			events_registered = excluded.events_registered,
			events_attended = excluded.events_attended,
			sessions_total = excluded.sessions_total,
			sessions_present = excluded.sessions_present,
			staff_average = excluded.staff_average,
			penalty_points = excluded.penalty_points,
			base_score = excluded.base_score,
			activity_level = excluded.activity_level,
			multiplier = excluded.multiplier,
			final_score = excluded.final_score,
			computed_at = excluded.computed_at
	`
	_, err := q.ExecContext(ctx, query,
		rec.MembershipID, rec.ClubID, rec.Year, int(rec.Month),
		rec.EventsRegistered, rec.EventsAttended.String(),
		rec.SessionsTotal, rec.SessionsPresent,
		rec.StaffAverage.String(), rec.PenaltyPoints,
		rec.BaseScore.String(), rec.ActivityLevel, rec.Multiplier.String(),
		rec.FinalScore.String(), rec.ComputedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *Store) MemberRecordsByClub(ctx context.Context, clubID activity.ClubID, year int, month time.Month) ([]activity.MemberMonthlyActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memberRecordsByClub(ctx, s.db, clubID, year, month)
}

func (s *Store) memberRecordsByClub(ctx context.Context, q dbtx, clubID activity.ClubID, year int, month time.Month) ([]activity.MemberMonthlyActivity, error) {
	query := "SELECT " + memberRecordColumns + `
		FROM member_monthly_activity
		WHERE club_id = ? AND year = ? AND month = ?
		ORDER BY membership_id`

	rows, err := q.QueryContext(ctx, query, clubID, year, int(month))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []activity.MemberMonthlyActivity
	for rows.Next() {
		rec, err := scanMemberRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanMemberRecord(rows *sql.Rows) (activity.MemberMonthlyActivity, error) {
	var (
		rec        activity.MemberMonthlyActivity
		month      int
		attended   string
		staffAvg   string
		baseScore  string
		multiplier string
		finalScore string
		computedAt string
	)
	err := rows.Scan(
		&rec.MembershipID, &rec.ClubID, &rec.Year, &month,
		&rec.EventsRegistered, &attended, &rec.SessionsTotal, &rec.SessionsPresent,
		&staffAvg, &rec.PenaltyPoints, &baseScore, &rec.ActivityLevel, &multiplier,
		&finalScore, &computedAt,
	)
	if err != nil {
		return rec, fmt.Errorf("failed to scan member record: %w", err)
	}
	rec.Month = time.Month(month)
	rec.EventsAttended = parseDecimal(attended)
	rec.StaffAverage = parseDecimal(staffAvg)
	rec.BaseScore = parseDecimal(baseScore)
	rec.Multiplier = parseDecimal(multiplier)
	rec.FinalScore = parseDecimal(finalScore)
	rec.ComputedAt = parseTime(computedAt)
	return rec, nil
}

// =============================================================================
// CLUB MONTHLY ACTIVITY
// =============================================================================

const clubRecordColumns = `club_id, year, month, total_events, avg_feedback,
	avg_checkin_rate, avg_member_score, staff_score, active_members,
	final_score, award_score, award_level, reward_points,
	locked, locked_at, locked_by, approved, distributed_at, distributed_by,
	computed_at`

func (s *Store) ClubRecord(ctx context.Context, clubID activity.ClubID, year int, month time.Month) (*activity.ClubMonthlyActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getClubRecord(ctx, s.db, clubID, year, month)
}

func (s *Store) getClubRecord(ctx context.Context, q dbtx, clubID activity.ClubID, year int, month time.Month) (*activity.ClubMonthlyActivity, error) {
	query := "SELECT " + clubRecordColumns + `
		FROM club_monthly_activity
		WHERE club_id = ? AND year = ? AND month = ?`

	rows, err := q.QueryContext(ctx, query, clubID, year, int(month))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("club record %s %d-%02d: %w", clubID, year, month, activity.ErrRecordNotFound)
	}
	rec, err := scanClubRecord(rows)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) UpsertClubRecord(ctx context.Context, rec activity.ClubMonthlyActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertClubRecord(ctx, s.db, rec)
}

func (s *Store) upsertClubRecord(ctx context.Context, q dbtx, rec activity.ClubMonthlyActivity) error {
	query := `
		INSERT INTO club_monthly_activity (` + clubRecordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(club_id, year, month) DO UPDATE SET
			total_events = excluded.total_events,
			avg_feedback = excluded.avg_feedback,
			avg_checkin_rate = excluded.avg_checkin_rate,
			avg_member_score = excluded.avg_member_score,
			staff_score = excluded.staff_score,
			active_members = excluded.active_members,
			final_score = excluded.final_score,
			award_score = excluded.award_score,
			award_level = excluded.award_level,
			reward_points = excluded.reward_points,
			locked = excluded.locked,
			locked_at = excluded.locked_at,
			locked_by = excluded.locked_by,
			approved = excluded.approved,
			distributed_at = excluded.distributed_at,
			distributed_by = excluded.distributed_by,
			computed_at = excluded.computed_at
	`
	_, err := q.ExecContext(ctx, query,
		rec.ClubID, rec.Year, int(rec.Month),
		rec.TotalEvents, rec.AvgFeedback.String(), rec.AvgCheckinRate.String(),
		rec.AvgMemberScore.String(), rec.StaffScore.String(), rec.ActiveMembers,
		rec.FinalScore.String(), rec.AwardScore.String(), rec.AwardLevel, rec.RewardPoints,
		rec.Locked, nullTime(rec.LockedAt), nullString(rec.LockedBy),
		rec.Approved, nullTime(rec.DistributedAt), nullString(rec.DistributedBy),
		rec.ComputedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *Store) ClubRecords(ctx context.Context, year int, month time.Month) ([]activity.ClubMonthlyActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clubRecordsForPeriod(ctx, s.db, year, month)
}

func (s *Store) clubRecordsForPeriod(ctx context.Context, q dbtx, year int, month time.Month) ([]activity.ClubMonthlyActivity, error) {
	query := "SELECT " + clubRecordColumns + `
		FROM club_monthly_activity
		WHERE year = ? AND month = ?
		ORDER BY club_id`

	return s.queryClubRecords(ctx, q, query, year, int(month))
}

func (s *Store) ClubRecordsForYear(ctx context.Context, clubID activity.ClubID, year int) ([]activity.ClubMonthlyActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clubRecordsForYear(ctx, s.db, clubID, year)
}

func (s *Store) clubRecordsForYear(ctx context.Context, q dbtx, clubID activity.ClubID, year int) ([]activity.ClubMonthlyActivity, error) {
	query := "SELECT " + clubRecordColumns + `
		FROM club_monthly_activity
		WHERE club_id = ? AND year = ?
		ORDER BY month`

	return s.queryClubRecords(ctx, q, query, clubID, year)
}

func (s *Store) queryClubRecords(ctx context.Context, q dbtx, query string, args ...any) ([]activity.ClubMonthlyActivity, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []activity.ClubMonthlyActivity
	for rows.Next() {
		rec, err := scanClubRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanClubRecord(rows *sql.Rows) (activity.ClubMonthlyActivity, error) {
	var (
		rec           activity.ClubMonthlyActivity
		month         int
		avgFeedback   string
		avgCheckin    string
		avgMember     string
		staffScore    string
		finalScore    string
		awardScore    string
		lockedAt      sql.NullString
		lockedBy      sql.NullString
		distributedAt sql.NullString
		distributedBy sql.NullString
		computedAt    string
	)
	err := rows.Scan(
		&rec.ClubID, &rec.Year, &month,
		&rec.TotalEvents, &avgFeedback, &avgCheckin, &avgMember, &staffScore,
		&rec.ActiveMembers, &finalScore, &awardScore, &rec.AwardLevel, &rec.RewardPoints,
		&rec.Locked, &lockedAt, &lockedBy, &rec.Approved, &distributedAt, &distributedBy,
		&computedAt,
	)
	if err != nil {
		return rec, fmt.Errorf("failed to scan club record: %w", err)
	}
	rec.Month = time.Month(month)
	rec.AvgFeedback = parseDecimal(avgFeedback)
	rec.AvgCheckinRate = parseDecimal(avgCheckin)
	rec.AvgMemberScore = parseDecimal(avgMember)
	rec.StaffScore = parseDecimal(staffScore)
	rec.FinalScore = parseDecimal(finalScore)
	rec.AwardScore = parseDecimal(awardScore)
	rec.ComputedAt = parseTime(computedAt)
	if lockedAt.Valid {
		t := parseTime(lockedAt.String)
		rec.LockedAt = &t
	}
	rec.LockedBy = lockedBy.String
	if distributedAt.Valid {
		t := parseTime(distributedAt.String)
		rec.DistributedAt = &t
	}
	rec.DistributedBy = distributedBy.String
	return rec, nil
}

func (s *Store) DeleteMemberRecords(ctx context.Context, clubID activity.ClubID, year int, month time.Month) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteMemberRecords(ctx, s.db, clubID, year, month)
}

func (s *Store) deleteMemberRecords(ctx context.Context, q dbtx, clubID activity.ClubID, year int, month time.Month) error {
	_, err := q.ExecContext(ctx,
		"DELETE FROM member_monthly_activity WHERE club_id = ? AND year = ? AND month = ?",
		clubID, year, int(month),
	)
	return err
}

func (s *Store) DeleteClubRecord(ctx context.Context, clubID activity.ClubID, year int, month time.Month) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteClubRecord(ctx, s.db, clubID, year, month)
}

func (s *Store) deleteClubRecord(ctx context.Context, q dbtx, clubID activity.ClubID, year int, month time.Month) error {
	_, err := q.ExecContext(ctx,
		"DELETE FROM club_monthly_activity WHERE club_id = ? AND year = ? AND month = ?",
		clubID, year, int(month),
	)
	return err
}
