package queue

import "time"

// EnqueuerOption is a functional option for configuring an Enqueuer
type EnqueuerOption func(*enqueuerOptions)

type enqueuerOptions struct {
	defaultQueue string
	defaultRetry RetryPolicy
	now          func() time.Time
}

// WithDefaultQueue sets the default queue name
func WithDefaultQueue(queue string) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if queue != "" {
			o.defaultQueue = queue
		}
	}
}

// WithDefaultRetryPolicy sets the retry policy applied when Enqueue gets none
func WithDefaultRetryPolicy(p RetryPolicy) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if p.MaxRetries >= 0 {
			o.defaultRetry = p
		}
	}
}

// WithEnqueuerClock overrides the time source, mostly for tests
func WithEnqueuerClock(now func() time.Time) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// EnqueueOption is a functional option for the Enqueue method
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	queue            string
	retry            RetryPolicy
	delay            time.Duration
	taskName         string
	removeOnComplete bool
}

// WithQueue sets the queue for the task
func WithQueue(queue string) EnqueueOption {
	return func(o *enqueueOptions) {
		if queue != "" {
			o.queue = queue
		}
	}
}

// WithRetryPolicy sets the retry policy for the task.
// Retries are capped at 10 to prevent endless loops on persistent failures.
func WithRetryPolicy(p RetryPolicy) EnqueueOption {
	return func(o *enqueueOptions) {
		if p.MaxRetries >= 0 && p.MaxRetries <= 10 {
			o.retry = p
		}
	}
}

// WithDelay sets a delay before the task can be processed
func WithDelay(delay time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		o.delay = delay
	}
}

// WithTaskName sets a custom task name
func WithTaskName(name string) EnqueueOption {
	return func(o *enqueueOptions) {
		if name != "" {
			o.taskName = name
		}
	}
}

// WithRemoveOnComplete controls whether completed tasks are pruned from storage (default true)
func WithRemoveOnComplete(remove bool) EnqueueOption {
	return func(o *enqueueOptions) {
		o.removeOnComplete = remove
	}
}
