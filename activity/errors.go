/*
errors.go - Centralized error types for the scoring core

PURPOSE:
  All typed failures of the engine in one place. The surrounding layers
  (engine, api) map these onto transport concerns; the core only ever
  reports them synchronously, never retries.

ERROR CATEGORIES:
  1. NotFound  - referenced membership/club/monthly record does not exist
  2. Conflict  - locked-month recomputation, double lock, double distribution
  3. InvalidRange - month outside 1-12, year below the sanity floor

USAGE:
  if errors.Is(err, activity.ErrMonthLocked) { ... }

  var lockErr *activity.LockedError
  if errors.As(err, &lockErr) { ... lockErr.LockedBy ... }
*/
package activity

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMembershipNotFound is returned when a referenced membership doesn't exist.
	ErrMembershipNotFound = errors.New("membership not found")

	// ErrClubNotFound is returned when a referenced club doesn't exist.
	ErrClubNotFound = errors.New("club not found")

	// ErrRecordNotFound is returned when no monthly record exists for the period.
	ErrRecordNotFound = errors.New("monthly record not found")

	// ErrMonthLocked is returned on any attempt to recompute a locked month.
	ErrMonthLocked = errors.New("month is locked")

	// ErrAlreadyLocked is returned when locking or approving an already-locked month.
	ErrAlreadyLocked = errors.New("month already locked")

	// ErrNotLocked is returned when distributing an unlocked month.
	ErrNotLocked = errors.New("month not locked")

	// ErrAlreadyDistributed is returned on a second distribution attempt.
	ErrAlreadyDistributed = errors.New("rewards already distributed")

	// ErrNoRewardPoints is returned when the locked record carries a zero pool.
	ErrNoRewardPoints = errors.New("no reward points to distribute")

	// ErrNoMemberActivity is returned when distribution finds no member rows.
	ErrNoMemberActivity = errors.New("no member activity for period")

	// ErrInvalidPeriod is returned for out-of-range year/month input.
	ErrInvalidPeriod = errors.New("invalid period")
)

// =============================================================================
// STRUCTURED ERRORS - Carry enough context for the caller to decide
// =============================================================================

// LockedError reports a Conflict against a locked monthly record.
type LockedError struct {
	ClubID   ClubID
	Year     int
	Month    time.Month
	LockedBy string
	LockedAt time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("club %s %d-%02d is locked by %s at %s",
		e.ClubID, e.Year, e.Month, e.LockedBy, e.LockedAt.Format(time.RFC3339))
}

func (e *LockedError) Unwrap() error { return ErrMonthLocked }

// InvalidPeriodError reports an out-of-range year/month.
type InvalidPeriodError struct {
	Year   int
	Month  int
	Reason string
}

func (e *InvalidPeriodError) Error() string {
	return fmt.Sprintf("invalid period %d-%02d: %s", e.Year, e.Month, e.Reason)
}

func (e *InvalidPeriodError) Unwrap() error { return ErrInvalidPeriod }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing subject or record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMembershipNotFound) ||
		errors.Is(err, ErrClubNotFound) ||
		errors.Is(err, ErrRecordNotFound)
}

// IsConflict returns true if the error indicates a state-machine conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrMonthLocked) ||
		errors.Is(err, ErrAlreadyLocked) ||
		errors.Is(err, ErrNotLocked) ||
		errors.Is(err, ErrAlreadyDistributed)
}
