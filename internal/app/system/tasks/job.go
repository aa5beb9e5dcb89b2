// internal/app/system/tasks/job.go
package tasks

import (
	"context"
	"time"
)

// Job is a unit of periodic background work run by workers.Runner.
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds one run. Zero means timeouts.Batch().
	Timeout time.Duration
	// RunAtStart runs the job once as soon as the runner starts instead of
	// waiting a full interval.
	RunAtStart bool
	Run        func(ctx context.Context) error
}
