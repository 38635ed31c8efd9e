package queue

import (
	"log/slog"
	"time"
)

// SchedulerOption is a functional option for configuring a scheduler
type SchedulerOption func(*schedulerOptions)

type schedulerOptions struct {
	checkInterval time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// WithCheckInterval sets how often the scheduler looks for due periodic tasks
func WithCheckInterval(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		if d > 0 {
			o.checkInterval = d
		}
	}
}

// WithSchedulerLogger sets the logger for the scheduler
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(o *schedulerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSchedulerClock overrides the time source, mostly for tests
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(o *schedulerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// SchedulerTaskOption is a functional option for configuring a periodic task
type SchedulerTaskOption func(*schedulerTaskOptions)

type schedulerTaskOptions struct {
	queue string
}

// WithTaskQueue sets the queue periodic runs are created on
func WithTaskQueue(queue string) SchedulerTaskOption {
	return func(o *schedulerTaskOptions) {
		if queue != "" {
			o.queue = queue
		}
	}
}
