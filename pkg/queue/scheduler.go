package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailscheduler/pkg/logger"
)

// SchedulerRepository defines the interface for scheduler operations
type SchedulerRepository interface {
	// CreateTask creates a new task in the storage
	CreateTask(ctx context.Context, task *Task) error

	// GetPendingTaskByName returns a pending or claimed task with the given
	// name on queue, ErrTaskNotFound when there is none
	GetPendingTaskByName(ctx context.Context, queue, name string) (*Task, error)
}

// Scheduler creates runs of periodic tasks on the queue. Runs are ordinary
// tasks, so a registered worker handler executes each one exactly once even
// when several processes run a scheduler. A run is not created while the
// previous one is still pending or running.
type Scheduler struct {
	repo     SchedulerRepository
	tasks    map[string]*scheduledTask
	mu       sync.RWMutex
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// scheduledTask holds configuration for a periodic task
type scheduledTask struct {
	name     string
	schedule Schedule
	queue    string
	nextRun  time.Time
}

// NewScheduler creates a new periodic task scheduler
func NewScheduler(repo SchedulerRepository, opts ...SchedulerOption) (*Scheduler, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &schedulerOptions{
		checkInterval: 30 * time.Second,
		logger:        slog.Default(),
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Scheduler{
		repo:     repo,
		tasks:    make(map[string]*scheduledTask),
		interval: options.checkInterval,
		logger:   options.logger,
		now:      options.now,
	}, nil
}

// AddTask registers a periodic task. name must match the Name of the worker
// handler that executes it.
func (s *Scheduler) AddTask(name string, schedule Schedule, opts ...SchedulerTaskOption) error {
	if name == "" || schedule == nil {
		return ErrInvalidPeriodicTask
	}

	taskOpts := &schedulerTaskOptions{
		queue: DefaultQueueName,
	}

	for _, opt := range opts {
		opt(taskOpts)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return ErrTaskAlreadyRegistered
	}

	s.tasks[name] = &scheduledTask{
		name:     name,
		schedule: schedule,
		queue:    taskOpts.queue,
		nextRun:  schedule.Next(s.now()),
	}

	s.logger.Info("registered periodic task",
		logger.TaskName(name),
		slog.String("schedule", schedule.String()))

	return nil
}

// Start checks for due periodic tasks until ctx is done
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.RLock()
	taskCount := len(s.tasks)
	s.mu.RUnlock()

	if taskCount == 0 {
		return ErrSchedulerNotConfigured
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.checkTasks(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.checkTasks(ctx)
		}
	}
}

// Run returns a function suitable for errgroup that runs the scheduler until
// ctx is done. Cancellation is a clean stop.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}
}

// checkTasks creates a run for every periodic task that is due
func (s *Scheduler) checkTasks(ctx context.Context) {
	s.mu.RLock()
	tasks := make([]*scheduledTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	s.mu.RUnlock()

	now := s.now()
	for _, task := range tasks {
		if err := s.scheduleTaskIfNeeded(ctx, task, now); err != nil {
			s.logger.Error("failed to schedule periodic task",
				logger.TaskName(task.name),
				logger.Error(err))
		}
	}
}

// scheduleTaskIfNeeded creates the next run of task once it is due
func (s *Scheduler) scheduleTaskIfNeeded(ctx context.Context, task *scheduledTask, now time.Time) error {
	s.mu.RLock()
	nextRun := task.nextRun
	s.mu.RUnlock()

	if nextRun.After(now) {
		return nil
	}

	existing, err := s.repo.GetPendingTaskByName(ctx, task.queue, task.name)
	switch {
	case err == nil && existing != nil:
		s.logger.Debug("periodic task still pending, skipping run",
			logger.TaskName(task.name),
			logger.TaskID(existing.ID.String()))
	case err != nil && !errors.Is(err, ErrTaskNotFound):
		return fmt.Errorf("look up pending run: %w", err)
	default:
		if err := s.repo.CreateTask(ctx, s.newRun(task, now)); err != nil {
			return fmt.Errorf("create periodic run: %w", err)
		}
		s.logger.Debug("created periodic run",
			logger.TaskName(task.name),
			slog.Time("due", nextRun))
	}

	s.mu.Lock()
	task.nextRun = task.schedule.Next(now)
	s.mu.Unlock()
	return nil
}

// newRun builds a run that is due immediately
func (s *Scheduler) newRun(task *scheduledTask, now time.Time) *Task {
	return &Task{
		ID:               uuid.New(),
		Queue:            task.queue,
		TaskName:         task.name,
		Payload:          []byte("{}"),
		Status:           TaskStatusPending,
		// a failed run is superseded by the next one
		Retry:            RetryPolicy{},
		RemoveOnComplete: true,
		ScheduledAt:      now,
		CreatedAt:        now,
	}
}
