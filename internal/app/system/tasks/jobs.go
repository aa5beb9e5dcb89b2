// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/dalemusser/promohub/internal/app/lifecycle"
	"github.com/dalemusser/promohub/internal/app/system/selection"
	"go.uber.org/zap"
)

// StartBatcher runs the promo start batch. *lifecycle.Scheduler satisfies it.
type StartBatcher interface {
	RunStartBatch(ctx context.Context) (lifecycle.BatchReport, error)
}

// ArchiveBatcher runs the promo archive batch. *lifecycle.Scheduler satisfies it.
type ArchiveBatcher interface {
	RunArchiveBatch(ctx context.Context) (lifecycle.BatchReport, error)
}

// PromoStartJob creates a job that starts the promos whose start date has come.
func PromoStartJob(s StartBatcher, interval time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:       "promo-start",
		Interval:   interval,
		RunAtStart: true,
		Run: func(ctx context.Context) error {
			rep, err := s.RunStartBatch(ctx)
			if err != nil {
				return err
			}
			if rep.Failed > 0 {
				logger.Warn("promo start batch had failures",
					zap.Int("selected", rep.Selected),
					zap.Int("failed", rep.Failed))
			}
			return nil
		},
	}
}

// PromoArchiveJob creates a job that archives the promos whose end date has passed.
func PromoArchiveJob(s ArchiveBatcher, interval time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:       "promo-archive",
		Interval:   interval,
		RunAtStart: true,
		Run: func(ctx context.Context) error {
			rep, err := s.RunArchiveBatch(ctx)
			if err != nil {
				return err
			}
			if rep.Failed > 0 {
				logger.Warn("promo archive batch had failures",
					zap.Int("selected", rep.Selected),
					zap.Int("failed", rep.Failed))
			}
			return nil
		},
	}
}

// SelectionSweepJob creates a job that drops expired creation selections.
// Expiry timers already do this; the sweep is a backup for timers that
// never fired.
func SelectionSweepJob(cache *selection.Cache, logger *zap.Logger) Job {
	return Job{
		Name:     "selection-sweep",
		Interval: cache.TTL(),
		Run: func(ctx context.Context) error {
			if n := cache.Sweep(); n > 0 {
				logger.Debug("swept expired selections", zap.Int("count", n))
			}
			return nil
		},
	}
}
