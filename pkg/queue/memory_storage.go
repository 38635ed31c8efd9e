package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements all queue repository interfaces for testing and local development.
// Its contents do not survive a restart, which makes it a convenient stand-in for a
// broker that lost its state.
type MemoryStorage struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*Task
	dead  map[uuid.UUID]*Task
	now   func() time.Time
}

// NewMemoryStorage creates a new in-memory storage implementation
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tasks: make(map[uuid.UUID]*Task),
		dead:  make(map[uuid.UUID]*Task),
		now:   time.Now,
	}
}

// NewMemoryStorageWithClock is NewMemoryStorage with an injected time source
func NewMemoryStorageWithClock(now func() time.Time) *MemoryStorage {
	ms := NewMemoryStorage()
	if now != nil {
		ms.now = now
	}
	return ms
}

// CreateTask implements EnqueuerRepository
func (ms *MemoryStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.tasks[task.ID]; exists {
		return fmt.Errorf("%w: %s", ErrTaskExists, task.ID)
	}

	// Clone task to prevent external modifications
	taskCopy := *task
	ms.tasks[task.ID] = &taskCopy

	return nil
}

// RemoveTask implements EnqueuerRepository
func (ms *MemoryStorage) RemoveTask(ctx context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return ErrTaskNotFound
	}

	switch task.Status {
	case TaskStatusProcessing:
		return ErrTaskActive
	case TaskStatusPending:
		delete(ms.tasks, taskID)
		return nil
	default:
		return ErrTaskNotFound
	}
}

// ClaimTask implements WorkerRepository
func (ms *MemoryStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	var best *Task

	// earliest due task first, creation time breaks ties
	for _, task := range ms.tasks {
		if task.Status != TaskStatusPending || !slices.Contains(queues, task.Queue) {
			continue
		}
		if task.ScheduledAt.After(now) {
			continue
		}
		if best == nil ||
			task.ScheduledAt.Before(best.ScheduledAt) ||
			(task.ScheduledAt.Equal(best.ScheduledAt) && task.CreatedAt.Before(best.CreatedAt)) {
			best = task
		}
	}

	if best == nil {
		return nil, ErrNoTaskToClaim
	}

	lockUntil := now.Add(lockDuration)
	best.Status = TaskStatusProcessing
	best.Attempts++
	best.LockedUntil = &lockUntil
	best.LockedBy = &workerID

	taskCopy := *best
	return &taskCopy, nil
}

// CompleteTask implements WorkerRepository
func (ms *MemoryStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processingTask(taskID)
	if err != nil {
		return err
	}

	if task.RemoveOnComplete {
		delete(ms.tasks, taskID)
		return nil
	}

	now := ms.now()
	task.Status = TaskStatusCompleted
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.LockedBy = nil

	return nil
}

// RetryTask implements WorkerRepository
func (ms *MemoryStorage) RetryTask(ctx context.Context, taskID uuid.UUID, errorMsg string, runAt time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processingTask(taskID)
	if err != nil {
		return err
	}

	task.Status = TaskStatusPending
	task.Error = &errorMsg
	task.ScheduledAt = runAt
	task.LockedUntil = nil
	task.LockedBy = nil

	return nil
}

// MoveToDLQ implements WorkerRepository
func (ms *MemoryStorage) MoveToDLQ(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	now := ms.now()
	task.Status = TaskStatusFailed
	task.Error = &errorMsg
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.LockedBy = nil

	ms.dead[taskID] = task
	delete(ms.tasks, taskID)

	return nil
}

// ExtendLock implements WorkerRepository
func (ms *MemoryStorage) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processingTask(taskID)
	if err != nil {
		return err
	}

	lockUntil := ms.now().Add(duration)
	task.LockedUntil = &lockUntil

	return nil
}

// RequeueExpired implements WorkerRepository
func (ms *MemoryStorage) RequeueExpired(ctx context.Context, queues []string) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	n := 0
	for _, task := range ms.tasks {
		if task.Status != TaskStatusProcessing || !slices.Contains(queues, task.Queue) {
			continue
		}
		if task.LockedUntil != nil && task.LockedUntil.Before(now) {
			task.Status = TaskStatusPending
			task.ScheduledAt = now
			task.LockedUntil = nil
			task.LockedBy = nil
			n++
		}
	}

	return n, nil
}

// GetTask returns a copy of a live or dead task
func (ms *MemoryStorage) GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	task, ok := ms.tasks[taskID]
	if !ok {
		task, ok = ms.dead[taskID]
	}
	if !ok {
		return nil, ErrTaskNotFound
	}

	taskCopy := *task
	return &taskCopy, nil
}

// GetPendingTaskByName implements SchedulerRepository
func (ms *MemoryStorage) GetPendingTaskByName(ctx context.Context, queue, name string) (*Task, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for _, task := range ms.tasks {
		if task.Queue != queue || task.TaskName != name {
			continue
		}
		if task.Status == TaskStatusPending || task.Status == TaskStatusProcessing {
			taskCopy := *task
			return &taskCopy, nil
		}
	}
	return nil, ErrTaskNotFound
}

// Len returns the number of tasks outside the dead letter set
func (ms *MemoryStorage) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.tasks)
}

// DeadTasks returns copies of the tasks in the dead letter set
func (ms *MemoryStorage) DeadTasks() []Task {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]Task, 0, len(ms.dead))
	for _, t := range ms.dead {
		out = append(out, *t)
	}
	return out
}

func (ms *MemoryStorage) processingTask(taskID uuid.UUID) (*Task, error) {
	task, exists := ms.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if task.Status != TaskStatusProcessing {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
	}
	return task, nil
}
