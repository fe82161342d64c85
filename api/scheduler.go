/*
scheduler.go - Monthly recomputation scheduler

PURPOSE:
  Runs the bulk recomputation for the just-finished month on a cron
  spec, by default at 03:00 on the 1st. The run targets the PREVIOUS
  calendar month: when the job fires on June 1st it recomputes May.

FAILURE MODEL:
  A failing club is logged by the engine and skipped; the scheduler
  only logs the summary. Locked clubs fail their own recomputation
  with a Conflict, which is the expected shape once a month has been
  approved, so those are not treated as scheduler errors.
*/
package api

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/clubhub/activity-engine/activity"
	"github.com/clubhub/activity-engine/engine"
)

// Scheduler triggers the monthly bulk recomputation.
type Scheduler struct {
	Engine *engine.Engine
	Log    *logrus.Logger

	cron *cron.Cron
}

// NewScheduler creates a scheduler around the engine.
func NewScheduler(e *engine.Engine, log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{Engine: e, Log: log}
}

// Start registers the recomputation job on the given cron spec
// (standard five-field syntax) and starts the scheduler.
func (s *Scheduler) Start(spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, s.runPreviousMonth)
	if err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.Log.WithField("spec", spec).Info("monthly recomputation scheduler started")
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// runPreviousMonth recomputes every club for the month before the one
// the job fires in.
func (s *Scheduler) runPreviousMonth() {
	now := s.Engine.Now().UTC()
	w := activity.NewMonthWindow(now.Year(), now.Month()).Prev()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	res, err := s.Engine.RecalcAll(ctx, w.Year, int(w.Month))
	if err != nil {
		s.Log.WithError(err).Error("scheduled recomputation failed")
		return
	}
	s.Log.WithFields(logrus.Fields{
		"period":    w.String(),
		"succeeded": len(res.Succeeded),
		"failed":    len(res.Failed),
	}).Info("scheduled recomputation finished")
}
