/*
distribute.go - Reward distributor

PURPOSE:
  Moves a locked month's reward-point pool out of the club wallet and into
  each member's wallet in proportion to their final score, with exact-sum
  integer flooring and one ledger entry per leg of every transfer.

PRECONDITIONS (checked inside the transaction):
  - club monthly record exists and is locked
  - not yet distributed (single-shot)
  - rewardPoints > 0
  - club wallet balance >= rewardPoints
  - at least one member activity row exists

SHARE MATH:
  totalScore = sum of member final scores, floored at 1
  share_i    = floor(finalScore_i * rewardPoints / totalScore)

  Flooring leaves an undistributed remainder in the club wallet. That is
  the platform's standing behavior; it is reported in the result rather
  than silently reallocated.

FAILURE MODEL:
  Any wallet write failing aborts the entire transaction - partial fund
  movement would be a financial-integrity violation. Notifications are
  sent only after commit.
*/
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/clubhub/activity-engine/activity"
	"github.com/clubhub/activity-engine/wallet"
)

// Transfer records one committed member payout.
type Transfer struct {
	MembershipID activity.MembershipID
	UserID       activity.UserID
	Share        int64
	Before       int64 // recipient balance before the credit
	After        int64
}

// DistributionResult summarizes one committed distribution.
type DistributionResult struct {
	ClubID      activity.ClubID
	Year        int
	Month       time.Month
	RewardPool  int64
	Distributed int64
	Remainder   int64 // flooring residue left in the club wallet
	Transfers   []Transfer
}

// Distribute pays out a locked month's reward pool. Single-shot: a second
// call for the same record fails with a Conflict.
func (e *Engine) Distribute(ctx context.Context, clubID activity.ClubID, year, month int, actor string) (*DistributionResult, error) {
	if err := activity.ValidateWindow(year, month); err != nil {
		return nil, err
	}
	w := activity.NewMonthWindow(year, time.Month(month))

	var (
		result     *DistributionResult
		recipients []activity.Membership
	)
	err := e.Store.WithTx(ctx, func(s Store) error {
		rec, err := s.ClubRecord(ctx, clubID, w.Year, w.Month)
		if err != nil {
			return err
		}
		if !rec.Locked {
			return fmt.Errorf("club %s %s: %w", clubID, w, activity.ErrNotLocked)
		}
		if rec.DistributedAt != nil {
			return fmt.Errorf("club %s %s: %w", clubID, w, activity.ErrAlreadyDistributed)
		}
		if rec.RewardPoints <= 0 {
			return fmt.Errorf("club %s %s: %w", clubID, w, activity.ErrNoRewardPoints)
		}

		rows, err := s.MemberRecordsByClub(ctx, clubID, w.Year, w.Month)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("club %s %s: %w", clubID, w, activity.ErrNoMemberActivity)
		}

		clubOwner := wallet.ClubOwner(string(clubID))
		balance, err := s.Balance(ctx, clubOwner)
		if err != nil {
			return err
		}
		if balance < rec.RewardPoints {
			return &wallet.InsufficientFundsError{
				Owner:     clubOwner,
				Available: balance,
				Requested: rec.RewardPoints,
			}
		}

		totalScore := decimal.Zero
		for _, row := range rows {
			totalScore = totalScore.Add(row.FinalScore)
		}
		// Floor at 1 so an all-zero month cannot divide by zero.
		if totalScore.LessThan(decimal.NewFromInt(1)) {
			totalScore = decimal.NewFromInt(1)
		}

		pool := decimal.NewFromInt(rec.RewardPoints)
		ref := reference(clubID, w)
		result = &DistributionResult{
			ClubID:     clubID,
			Year:       w.Year,
			Month:      w.Month,
			RewardPool: rec.RewardPoints,
		}

		for _, row := range rows {
			share := row.FinalScore.Mul(pool).Div(totalScore).Floor().IntPart()
			if share <= 0 {
				continue
			}

			m, err := s.Membership(ctx, row.MembershipID)
			if err != nil {
				return err
			}
			owner := wallet.UserOwner(string(m.UserID))

			before, err := s.Balance(ctx, owner)
			if err != nil {
				return err
			}

			desc := fmt.Sprintf("activity reward share for %s", w)
			if _, err := s.Debit(ctx, clubOwner, share, wallet.Entry{
				Type:        wallet.TxDistributionDebit,
				Description: desc,
				Reference:   ref,
			}); err != nil {
				return err
			}
			if _, err := s.Credit(ctx, owner, share, wallet.Entry{
				Type:        wallet.TxDistributionCredit,
				Description: desc,
				Reference:   ref,
			}); err != nil {
				return err
			}
			// Recipient-side bonus entry: log-only, for member-facing history.
			if _, err := s.AppendEntry(ctx, owner, share, wallet.Entry{
				Type:        wallet.TxBonus,
				Description: fmt.Sprintf("monthly activity bonus (%s)", row.ActivityLevel),
				Reference:   ref,
			}); err != nil {
				return err
			}

			result.Transfers = append(result.Transfers, Transfer{
				MembershipID: m.ID,
				UserID:       m.UserID,
				Share:        share,
				Before:       before,
				After:        before + share,
			})
			result.Distributed += share
			recipients = append(recipients, *m)
		}
		result.Remainder = result.RewardPool - result.Distributed

		now := e.Now().UTC()
		rec.DistributedAt = &now
		rec.DistributedBy = actor
		return s.UpsertClubRecord(ctx, *rec)
	})
	if err != nil {
		return nil, err
	}

	for i, t := range result.Transfers {
		e.Notifier.RewardDistributed(ctx, recipients[i], w.Year, w.Month, t.Share, t.Before, t.After)
	}

	e.Log.WithFields(logrus.Fields{
		"club":        clubID,
		"period":      w.String(),
		"pool":        result.RewardPool,
		"distributed": result.Distributed,
		"remainder":   result.Remainder,
		"recipients":  len(result.Transfers),
	}).Info("reward distribution committed")

	return result, nil
}
