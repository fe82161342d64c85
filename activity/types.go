/*
Package activity provides the core monthly activity scoring engine.

PURPOSE:
  This package contains the data model and pure algorithms that turn raw
  behavioral records (event registrations, recurring-session attendance,
  staff-duty evaluations, disciplinary penalties) into a normalized
  activity score per member and per club for one calendar month.

KEY CONCEPTS IN THIS FILE (types.go):
  - MonthWindow: The [start, start+1month) window all aggregation runs over
  - Membership: A (user, club) pairing with a role and lifecycle state
  - Raw records: EventRegistration, SessionRecord, StaffEvaluation, Penalty
  - MemberMonthlyActivity / ClubMonthlyActivity: one row per subject+month

DESIGN PRINCIPLES:
  1. Purity: Score calculators are pure functions over aggregated inputs;
     persistence is a separate, thin upsert step (see engine package)
  2. Precision: decimal.Decimal for every computed score, so recomputation
     with identical inputs produces byte-identical stored fields
  3. Owned-by-id relations: a membership stores a club id and a user id,
     never a back-collection that must stay in sync

SEE ALSO:
  - aggregate.go: The four metric aggregators
  - member.go: Member score calculation
  - club.go: Club score calculation
  - errors.go: Typed failures shared with the engine package
*/
package activity

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type MembershipID string
type ClubID string
type UserID string

// =============================================================================
// MONTH WINDOW - The aggregation boundary
// =============================================================================

// MonthWindow identifies one calendar month. All raw-record scans cover
// [Start(), End()), i.e. the end is exclusive.
type MonthWindow struct {
	Year  int
	Month time.Month
}

func NewMonthWindow(year int, month time.Month) MonthWindow {
	return MonthWindow{Year: year, Month: month}
}

// Start returns the first instant of the month (UTC).
func (w MonthWindow) Start() time.Time {
	return time.Date(w.Year, w.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant of the following month (exclusive bound).
func (w MonthWindow) End() time.Time {
	return w.Start().AddDate(0, 1, 0)
}

// Contains reports whether t falls inside the window.
func (w MonthWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start()) && t.Before(w.End())
}

// Prev returns the preceding month's window.
func (w MonthWindow) Prev() MonthWindow {
	s := w.Start().AddDate(0, -1, 0)
	return MonthWindow{Year: s.Year(), Month: s.Month()}
}

func (w MonthWindow) String() string {
	return w.Start().Format("2006-01")
}

// yearFloor is the sanity floor for period validation. Records before the
// platform existed are always a caller mistake.
const yearFloor = 2000

// ValidateWindow checks year/month sanity before any aggregation runs.
func ValidateWindow(year int, month int) error {
	if month < 1 || month > 12 {
		return &InvalidPeriodError{Year: year, Month: month, Reason: "month must be 1-12"}
	}
	if year < yearFloor {
		return &InvalidPeriodError{Year: year, Month: month, Reason: "year below sanity floor"}
	}
	return nil
}

// =============================================================================
// MEMBERSHIP - Owned by the membership lifecycle, read-only here
// =============================================================================

type Role string

const (
	RoleOrdinary Role = "ordinary"
	RoleStaff    Role = "staff" // leadership / duty-bearing membership
)

type MembershipState string

const (
	MembershipActive   MembershipState = "active"
	MembershipInactive MembershipState = "inactive"
)

// Membership pairs one user with one club. The engine only reads these;
// the single field it writes back is CurrentMultiplier, a denormalized
// convenience value updated in the same transaction as the monthly row.
type Membership struct {
	ID     MembershipID
	UserID UserID
	ClubID ClubID
	Role   Role
	State  MembershipState

	// Multiplier resolved at the latest recomputation. Consumed by read
	// paths outside this engine.
	CurrentMultiplier decimal.Decimal
}

func (m Membership) IsActive() bool { return m.State == MembershipActive }
func (m Membership) IsStaff() bool  { return m.Role == RoleStaff }

// Club carries only what the engine needs; full club CRUD lives elsewhere.
type Club struct {
	ID   ClubID
	Name string
}

// =============================================================================
// RAW BEHAVIORAL RECORDS - Inputs to the aggregators
// =============================================================================

type AttendanceKind string

const (
	AttendanceFull    AttendanceKind = "full"    // weighted 1.0
	AttendancePartial AttendanceKind = "partial" // weighted 0.5
	AttendanceNone    AttendanceKind = "none"    // weighted 0
)

// EventRegistration is one member's registration for one hosted event.
type EventRegistration struct {
	EventID    string
	EventDate  time.Time
	Attendance AttendanceKind
}

type SessionStatus string

const (
	SessionPresent SessionStatus = "present"
	SessionLate    SessionStatus = "late" // counts as present
	SessionAbsent  SessionStatus = "absent"
)

// SessionRecord is one recurring club-session attendance mark.
type SessionRecord struct {
	SessionID string
	At        time.Time
	Status    SessionStatus
}

type EvaluationGrade string

const (
	GradePoor      EvaluationGrade = "poor"      // 0.25
	GradeAverage   EvaluationGrade = "average"   // 0.50
	GradeGood      EvaluationGrade = "good"      // 0.75
	GradeExcellent EvaluationGrade = "excellent" // 1.00
)

// StaffEvaluation is one staff-duty evaluation tied to an event date.
type StaffEvaluation struct {
	EventID   string
	EventDate time.Time
	Grade     EvaluationGrade
}

// Penalty is a disciplinary point delta. Points is always <= 0.
type Penalty struct {
	At     time.Time
	Points int64
	Reason string
}

// EventMetrics summarizes one completed event a club hosted, as consumed
// by the club score calculator and the contribution read path.
type EventMetrics struct {
	EventID     string
	Name        string
	Date        time.Time
	Feedback    decimal.Decimal // mean attendee rating, 1-5 scale
	CheckinRate decimal.Decimal // checked-in / capacity, 0-1
}

// =============================================================================
// MONTHLY ACTIVITY RECORDS - One row per subject per month
// =============================================================================

// MemberMonthlyActivity is the stored result of one member recomputation.
// Invariant: at most one row per (membership, year, month); once the owning
// club's monthly record is locked the row is immutable.
type MemberMonthlyActivity struct {
	MembershipID MembershipID
	ClubID       ClubID
	Year         int
	Month        time.Month

	EventsRegistered int64
	EventsAttended   decimal.Decimal // fractionally weighted
	SessionsTotal    int64
	SessionsPresent  int64
	StaffAverage     decimal.Decimal // 0-1
	PenaltyPoints    int64           // <= 0

	BaseScore     decimal.Decimal // 0-1, 4 places
	ActivityLevel string
	Multiplier    decimal.Decimal
	FinalScore    decimal.Decimal // 0-100 scale, 2 places

	ComputedAt time.Time
}

// ClubMonthlyActivity is the stored result of one club recomputation plus
// its lock/approval/distribution descriptor.
// Invariant: RewardPoints is fixed at computation time; Locked forbids
// recomputation; distribution runs at most once per locked record.
type ClubMonthlyActivity struct {
	ClubID ClubID
	Year   int
	Month  time.Month

	TotalEvents     int64
	AvgFeedback     decimal.Decimal // 1-5
	AvgCheckinRate  decimal.Decimal // 0-1
	AvgMemberScore  decimal.Decimal // 0-100
	StaffScore      decimal.Decimal // 0-100
	ActiveMembers   int64
	FinalScore      decimal.Decimal // weighted percentage, 2 places
	AwardScore      decimal.Decimal
	AwardLevel      string
	RewardPoints    int64

	Locked        bool
	LockedAt      *time.Time
	LockedBy      string
	Approved      bool
	DistributedAt *time.Time
	DistributedBy string

	ComputedAt time.Time
}

// Open reports whether the record may still be recomputed.
func (c ClubMonthlyActivity) Open() bool { return !c.Locked }

// Window returns the month window this record covers.
func (c ClubMonthlyActivity) Window() MonthWindow {
	return MonthWindow{Year: c.Year, Month: c.Month}
}
