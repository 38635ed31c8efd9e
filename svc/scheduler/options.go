package scheduler

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/mailscheduler/pkg/queue"
)

// Option configures stores, Service, Worker and Recovery.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	now        func() time.Time
	enqueueOps []queue.EnqueueOption
	grace      time.Duration
}

func newOptions(opts []Option) options {
	o := options{
		logger: slog.Default(),
		now:    time.Now,
		grace:  time.Minute,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithEnqueueOptions adds queue options (queue name, retry policy) to every
// delivery task.
func WithEnqueueOptions(opts ...queue.EnqueueOption) Option {
	return func(o *options) {
		o.enqueueOps = append(o.enqueueOps, opts...)
	}
}

// WithReconcileGrace sets how old a record without a queue handle must be
// before Reconcile treats its enqueue as lost.
func WithReconcileGrace(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.grace = d
		}
	}
}
