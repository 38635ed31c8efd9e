package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnqueuerRepository defines the interface for task creation and removal
type EnqueuerRepository interface {
	CreateTask(ctx context.Context, task *Task) error
	// RemoveTask deletes a pending task. It returns ErrTaskActive when the task
	// is claimed by a worker and ErrTaskNotFound when it is not pending.
	RemoveTask(ctx context.Context, taskID uuid.UUID) error
	// GetTask loads a live or dead-lettered task, ErrTaskNotFound otherwise.
	GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error)
}

// Enqueuer handles task enqueueing
type Enqueuer struct {
	repo         EnqueuerRepository
	defaultQueue string
	defaultRetry RetryPolicy
	now          func() time.Time
}

// NewEnqueuer creates a new Enqueuer
func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &enqueuerOptions{
		defaultQueue: DefaultQueueName,
		defaultRetry: DefaultRetryPolicy(),
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Enqueuer{
		repo:         repo,
		defaultQueue: options.defaultQueue,
		defaultRetry: options.defaultRetry,
		now:          options.now,
	}, nil
}

// Enqueue adds a new task to the queue and returns its handle.
// A delay of zero or less makes the task eligible immediately.
func (e *Enqueuer) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) (string, error) {
	if payload == nil {
		return "", ErrPayloadNil
	}

	options := &enqueueOptions{
		queue:            e.defaultQueue,
		retry:            e.defaultRetry,
		removeOnComplete: true,
	}

	for _, opt := range opts {
		opt(options)
	}

	task, err := e.buildTask(payload, options)
	if err != nil {
		return "", err
	}

	if err := e.repo.CreateTask(ctx, task); err != nil {
		return "", fmt.Errorf("failed to create task %q in queue %q: %w", task.TaskName, task.Queue, err)
	}

	return task.Handle(), nil
}

// Remove deletes a pending task by its handle.
func (e *Enqueuer) Remove(ctx context.Context, handle string) error {
	id, err := uuid.Parse(handle)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidHandle, handle)
	}
	return e.repo.RemoveTask(ctx, id)
}

// Lookup returns the task behind a handle. Completed tasks are deleted when
// RemoveOnComplete is set, so ErrTaskNotFound may also mean the task ran.
func (e *Enqueuer) Lookup(ctx context.Context, handle string) (*Task, error) {
	id, err := uuid.Parse(handle)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHandle, handle)
	}
	return e.repo.GetTask(ctx, id)
}

// buildTask constructs a Task from payload and options
func (e *Enqueuer) buildTask(payload any, options *enqueueOptions) (*Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload of type %T: %w", payload, err)
	}

	taskName := options.taskName
	if taskName == "" {
		taskName = qualifiedStructName(payload)
	}

	now := e.now()
	scheduledAt := now
	if options.delay > 0 {
		scheduledAt = now.Add(options.delay)
	}

	return &Task{
		ID:               uuid.New(),
		Queue:            options.queue,
		TaskName:         taskName,
		Payload:          payloadBytes,
		Status:           TaskStatusPending,
		Retry:            options.retry,
		RemoveOnComplete: options.removeOnComplete,
		ScheduledAt:      scheduledAt,
		CreatedAt:        now,
	}, nil
}
