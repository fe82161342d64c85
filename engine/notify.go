/*
notify.go - Notification boundary

PURPOSE:
  Lock, approval, and distribution all notify people (club leadership,
  reward recipients). Delivery is an external collaborator; the engine
  only defines the boundary and ships a logrus-backed default so the
  events stay visible without any delivery channel configured.
*/
package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clubhub/activity-engine/activity"
)

// Notifier receives workflow events. Implementations must not block the
// calling transaction; the engine invokes them after commit.
type Notifier interface {
	// MonthLocked fires on both lock and approve; approved distinguishes
	// the path taken.
	MonthLocked(ctx context.Context, club activity.Club, year int, month time.Month, actor string, approved bool)

	// RewardDistributed fires once per recipient with before/after
	// balances for transparency.
	RewardDistributed(ctx context.Context, m activity.Membership, year int, month time.Month, share, before, after int64)
}

// NopNotifier drops all events.
type NopNotifier struct{}

func (NopNotifier) MonthLocked(context.Context, activity.Club, int, time.Month, string, bool) {}
func (NopNotifier) RewardDistributed(context.Context, activity.Membership, int, time.Month, int64, int64, int64) {
}

// LogNotifier writes events to a structured log.
type LogNotifier struct {
	Log *logrus.Logger
}

func (n LogNotifier) MonthLocked(_ context.Context, club activity.Club, year int, month time.Month, actor string, approved bool) {
	n.Log.WithFields(logrus.Fields{
		"club":     club.ID,
		"period":   activity.NewMonthWindow(year, month).String(),
		"actor":    actor,
		"approved": approved,
	}).Info("monthly record locked")
}

func (n LogNotifier) RewardDistributed(_ context.Context, m activity.Membership, year int, month time.Month, share, before, after int64) {
	n.Log.WithFields(logrus.Fields{
		"membership": m.ID,
		"user":       m.UserID,
		"period":     activity.NewMonthWindow(year, month).String(),
		"share":      share,
		"before":     before,
		"after":      after,
	}).Info("reward points distributed")
}
