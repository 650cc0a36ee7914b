package training

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler fires the batch trainer once per calendar week, at Monday 00:05
// UTC. Firing more often is harmless: the period marker makes extra ticks
// no-ops.
type Scheduler struct {
	trainer *Trainer
	log     *logrus.Logger
}

func NewScheduler(trainer *Trainer, log *logrus.Logger) *Scheduler {
	return &Scheduler{trainer: trainer, log: log}
}

func (s *Scheduler) Run(ctx context.Context) {
	for {
		res, err := s.trainer.RunOnce(ctx, time.Now().UTC())
		switch {
		case errors.Is(err, ErrRunInProgress):
			s.log.Info("training: another run in progress, skipping tick")
		case err != nil:
			// Failed run: no marker was written, the next tick retries.
			s.log.WithError(err).Error("training: batch run failed")
		case res.Ran:
			s.log.WithFields(logrus.Fields{
				"period":   res.PeriodKey,
				"trained":  res.Trained,
				"skipped":  res.Skipped,
				"accuracy": res.Accuracy,
			}).Info("training: batch run completed")
		default:
			s.log.WithField("period", res.PeriodKey).
				Debug("training: period already trained")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleepUntilNextRun(time.Now().UTC())):
		}
	}
}

// sleepUntilNextRun returns the wait until the next Monday 00:05 UTC, with a
// one minute floor so clock skew never busy-loops the scheduler.
func sleepUntilNextRun(now time.Time) time.Duration {
	daysAhead := (int(time.Monday) - int(now.Weekday()) + 7) % 7
	if daysAhead == 0 {
		daysAhead = 7
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 5, 0, 0, time.UTC).
		AddDate(0, 0, daysAhead)
	d := next.Sub(now)
	if d < time.Minute {
		return time.Minute
	}
	return d
}
