// internal/app/system/workers/runner.go
package workers

import (
	"context"
	"sync"

	"github.com/dalemusser/promohub/internal/app/system/tasks"
	"github.com/dalemusser/promohub/internal/app/system/timeouts"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Runner is a background worker that runs each job on its own ticker.
// A run never overlaps the previous run of the same job.
type Runner struct {
	jobs   []tasks.Job
	clock  clockwork.Clock
	log    *zap.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRunner creates a runner for the given jobs. Jobs with a non-positive
// interval are skipped.
func NewRunner(jobs []tasks.Job, clock clockwork.Clock, logger *zap.Logger) *Runner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Runner{
		jobs:   jobs,
		clock:  clock,
		log:    logger,
		stopCh: make(chan struct{}),
	}
}

// Start begins one loop per job.
func (r *Runner) Start() {
	for _, job := range r.jobs {
		if job.Interval <= 0 || job.Run == nil {
			r.log.Warn("job skipped", zap.String("job", job.Name), zap.Duration("interval", job.Interval))
			continue
		}
		r.wg.Add(1)
		go r.loop(job)
		r.log.Info("job scheduled",
			zap.String("job", job.Name),
			zap.Duration("interval", job.Interval),
			zap.Bool("run_at_start", job.RunAtStart))
	}
}

// Stop signals every loop to stop and waits for running jobs to finish.
// It is safe to call more than once.
func (r *Runner) Stop() {
	r.once.Do(func() {
		close(r.stopCh)
		r.wg.Wait()
		r.log.Info("job runner stopped")
	})
}

func (r *Runner) loop(job tasks.Job) {
	defer r.wg.Done()

	if job.RunAtStart {
		r.runOnce(job)
	}

	ticker := r.clock.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.Chan():
			r.runOnce(job)
		}
	}
}

func (r *Runner) runOnce(job tasks.Job) {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = timeouts.Batch()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ctx, cancelTimeout := timeouts.WithTimeout(ctx, timeout, r.log, job.Name)
	defer cancelTimeout()

	started := r.clock.Now()
	if err := job.Run(ctx); err != nil {
		r.log.Error("job failed", zap.String("job", job.Name), zap.Error(err))
		return
	}
	r.log.Debug("job done", zap.String("job", job.Name), zap.Duration("took", r.clock.Since(started)))
}
