package queue

import (
	"log/slog"
	"time"
)

// WorkerOption is a functional option for configuring a worker
type WorkerOption func(*workerOptions)

type workerOptions struct {
	queues             []string
	pullInterval       time.Duration
	lockTimeout        time.Duration
	taskTimeout        time.Duration
	maxConcurrentTasks int
	logger             *slog.Logger
	now                func() time.Time
}

// WithQueues sets which queues the worker should pull from
func WithQueues(queues ...string) WorkerOption {
	return func(o *workerOptions) {
		if len(queues) > 0 {
			o.queues = queues
		}
	}
}

// WithPullInterval sets how often the worker checks for due tasks
func WithPullInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pullInterval = d
		}
	}
}

// WithLockTimeout sets the lock duration for tasks
func WithLockTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithTaskTimeout bounds a single handler call. The lock is extended while the
// handler runs, so the timeout may exceed the lock timeout. Defaults to the
// lock timeout.
func WithTaskTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.taskTimeout = d
		}
	}
}

// WithMaxConcurrentTasks sets the maximum number of concurrent tasks
func WithMaxConcurrentTasks(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.maxConcurrentTasks = n
		}
	}
}

// WithWorkerLogger sets the logger for the worker
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithWorkerClock overrides the time source used for retry scheduling
func WithWorkerClock(now func() time.Time) WorkerOption {
	return func(o *workerOptions) {
		if now != nil {
			o.now = now
		}
	}
}
