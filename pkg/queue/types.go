package queue

import (
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is the default queue name used when no queue is specified
const DefaultQueueName = "default"

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// RetryPolicy controls automatic re-execution of a failed task.
// A task gets at most 1+MaxRetries attempts; retry n waits Backoff*2^(n-1).
type RetryPolicy struct {
	MaxRetries int           `json:"max_retries"`
	Backoff    time.Duration `json:"backoff"`
}

// DefaultRetryPolicy returns three retries starting at two seconds (2s, 4s, 8s).
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		Backoff:    2 * time.Second,
	}
}

// MaxAttempts is the total number of executions the policy allows.
func (p RetryPolicy) MaxAttempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// Delay returns the pause before the given retry (1-based).
func (p RetryPolicy) Delay(retry int) time.Duration {
	if retry < 1 || p.Backoff <= 0 {
		return 0
	}
	// cap the shift so a misconfigured policy cannot overflow
	shift := min(retry-1, 20)
	return p.Backoff * time.Duration(1<<shift)
}

// Task represents a task in the queue
type Task struct {
	ID               uuid.UUID   `json:"id"`
	Queue            string      `json:"queue"`
	TaskName         string      `json:"task_name"`
	Payload          []byte      `json:"payload,omitempty"`
	Status           TaskStatus  `json:"status"`
	Attempts         int         `json:"attempts"`
	Retry            RetryPolicy `json:"retry"`
	RemoveOnComplete bool        `json:"remove_on_complete"`
	ScheduledAt      time.Time   `json:"scheduled_at"`
	LockedUntil      *time.Time  `json:"locked_until,omitempty"`
	LockedBy         *uuid.UUID  `json:"locked_by,omitempty"`
	ProcessedAt      *time.Time  `json:"processed_at,omitempty"`
	Error            *string     `json:"error,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Handle returns the opaque identifier callers use to correlate with the task.
func (t *Task) Handle() string {
	return t.ID.String()
}

// Attempt describes the execution a handler is currently running.
type Attempt struct {
	TaskID      uuid.UUID
	Number      int // 1-based
	MaxAttempts int
}

// Final reports whether a failure of this attempt exhausts the retry policy.
func (a Attempt) Final() bool {
	return a.Number >= a.MaxAttempts
}

func (t *Task) attempt() Attempt {
	return Attempt{
		TaskID:      t.ID,
		Number:      t.Attempts,
		MaxAttempts: t.Retry.MaxAttempts(),
	}
}
