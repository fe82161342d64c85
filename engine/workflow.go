/*
workflow.go - Lock/approval state machine

PURPOSE:
  A club's monthly record moves OPEN -> LOCKED. Two entry points reach the
  locked state from the same precondition:

    Lock:    sets the lock flag only. No fund movement.
    Approve: credits the reward-point pool into the club wallet AND sets
             the lock flag, atomically.

  Whichever runs first wins; the other fails with a Conflict. The lock
  flag plus wallet credit are one transaction - a set flag without the
  credit (or vice versa) is a correctness violation, so both writes ride
  the same WithTx.
*/
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/clubhub/activity-engine/activity"
	"github.com/clubhub/activity-engine/wallet"
)

// Lock transitions the club's monthly record to the locked state without
// moving funds. Requires an existing, unlocked record.
func (e *Engine) Lock(ctx context.Context, clubID activity.ClubID, year, month int, actor string) error {
	club, err := e.lockTx(ctx, clubID, year, month, actor, false)
	if err != nil {
		return err
	}
	e.Notifier.MonthLocked(ctx, *club, year, time.Month(month), actor, false)
	return nil
}

// Approve credits the record's reward points into the club wallet and
// locks, atomically. Rejects an already-locked record: approval and plain
// locking are mutually exclusive paths onto the same terminal state.
func (e *Engine) Approve(ctx context.Context, clubID activity.ClubID, year, month int, actor string) error {
	club, err := e.lockTx(ctx, clubID, year, month, actor, true)
	if err != nil {
		return err
	}
	e.Notifier.MonthLocked(ctx, *club, year, time.Month(month), actor, true)
	return nil
}

// lockTx performs the shared transition. When credit is true the reward
// pool is credited to the club wallet inside the same transaction.
func (e *Engine) lockTx(ctx context.Context, clubID activity.ClubID, year, month int, actor string, credit bool) (*activity.Club, error) {
	if err := activity.ValidateWindow(year, month); err != nil {
		return nil, err
	}
	w := activity.NewMonthWindow(year, time.Month(month))

	var club *activity.Club
	err := e.Store.WithTx(ctx, func(s Store) error {
		var err error
		club, err = s.Club(ctx, clubID)
		if err != nil {
			return err
		}

		rec, err := s.ClubRecord(ctx, clubID, w.Year, w.Month)
		if err != nil {
			return err
		}
		if rec.Locked {
			return fmt.Errorf("club %s %s: %w", clubID, w, activity.ErrAlreadyLocked)
		}

		if credit && rec.RewardPoints > 0 {
			_, err = s.Credit(ctx, wallet.ClubOwner(string(clubID)), rec.RewardPoints, wallet.Entry{
				Type:        wallet.TxRewardCredit,
				Description: fmt.Sprintf("monthly reward pool for %s", w),
				Reference:   reference(clubID, w),
			})
			if err != nil {
				return err
			}
		}

		now := e.Now().UTC()
		rec.Locked = true
		rec.LockedAt = &now
		rec.LockedBy = actor
		rec.Approved = credit
		return s.UpsertClubRecord(ctx, *rec)
	})
	if err != nil {
		return nil, err
	}
	return club, nil
}

// reference ties wallet ledger entries to one club and period.
func reference(clubID activity.ClubID, w activity.MonthWindow) string {
	return fmt.Sprintf("%s:%s", clubID, w)
}
