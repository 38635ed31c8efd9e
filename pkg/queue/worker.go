package queue

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailscheduler/pkg/logger"
)

// WorkerRepository defines the interface for worker operations
type WorkerRepository interface {
	// ClaimTask atomically claims the earliest due task and increments its attempt counter
	ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error)

	// CompleteTask marks task as completed, deleting it when RemoveOnComplete is set
	CompleteTask(ctx context.Context, taskID uuid.UUID) error

	// RetryTask records the error and makes the task due again at runAt
	RetryTask(ctx context.Context, taskID uuid.UUID, errorMsg string, runAt time.Time) error

	// MoveToDLQ marks the task as failed and parks it in the dead letter set
	MoveToDLQ(ctx context.Context, taskID uuid.UUID, errorMsg string) error

	// ExtendLock extends the lock timeout for long-running tasks
	ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error

	// RequeueExpired returns tasks whose lock expired (crashed workers) to the due set
	RequeueExpired(ctx context.Context, queues []string) (int, error)
}

// Worker processes tasks from the queue
type Worker struct {
	repo     WorkerRepository
	handlers map[string]Handler
	queues   []string
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopMu   sync.Mutex // Protects stopping state and WaitGroup operations

	// Configuration
	pullInterval time.Duration
	lockTimeout  time.Duration
	taskTimeout  time.Duration
	logger       *slog.Logger
	now          func() time.Time

	// State management
	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

// NewWorker creates a new task worker
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &workerOptions{
		queues:             []string{DefaultQueueName},
		pullInterval:       time.Second,
		lockTimeout:        5 * time.Minute,
		maxConcurrentTasks: 1,
		logger:             slog.Default(),
		now:                time.Now,
	}

	for _, opt := range opts {
		opt(options)
	}

	workerID := uuid.New()
	return &Worker{
		repo:         repo,
		handlers:     make(map[string]Handler),
		queues:       options.queues,
		workerID:     workerID,
		sem:          make(chan struct{}, options.maxConcurrentTasks),
		pullInterval: options.pullInterval,
		lockTimeout:  options.lockTimeout,
		taskTimeout:  cmp.Or(options.taskTimeout, options.lockTimeout),
		logger:       options.logger.With(slog.String("worker_id", workerID.String())),
		now:          options.now,
	}, nil
}

// RegisterHandler registers a single task handler
func (w *Worker) RegisterHandler(handler Handler) error {
	if handler == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.handlers[handler.Name()] = handler
	return nil
}

// RegisterHandlers registers multiple task handlers
func (w *Worker) RegisterHandlers(handlers ...Handler) error {
	for _, h := range handlers {
		if err := w.RegisterHandler(h); err != nil {
			return err
		}
	}
	return nil
}

// Start begins processing tasks in the background
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return fmt.Errorf("worker already started")
	}

	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)

	go w.run()

	w.logger.Info("worker started",
		slog.Any("queues", w.queues),
		slog.Int("max_concurrent", cap(w.sem)))

	return nil
}

// Stop gracefully shuts down the worker, waiting for in-flight tasks
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return fmt.Errorf("worker not started")
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	w.logger.Info("worker stopping, waiting for active tasks to complete")

	w.wg.Wait()

	w.logger.Info("worker stopped")

	return nil
}

// Run starts the worker and returns a function suitable for errgroup
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return w.Stop()
	}
}

// run is the main processing loop
func (w *Worker) run() {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.requeueExpired()
			if !w.drain() {
				return
			}
		}
	}
}

// requeueExpired gives tasks held by dead workers back to the due set
func (w *Worker) requeueExpired() {
	n, err := w.repo.RequeueExpired(w.ctx, w.queues)
	if err != nil {
		if w.ctx.Err() == nil {
			w.logger.Error("failed to requeue expired tasks",
				logger.Error(err))
		}
		return
	}
	if n > 0 {
		w.logger.Warn("requeued tasks with expired locks",
			slog.Int("count", n))
	}
}

// drain claims due tasks until storage runs dry or all slots are busy.
// It returns false once the worker is stopping.
func (w *Worker) drain() bool {
	for {
		select {
		case w.sem <- struct{}{}:
		default:
			w.logger.Debug("all worker slots busy, skipping tick")
			return true
		}

		// Use stopMu to ensure we don't add to WaitGroup after Stop() starts
		w.stopMu.Lock()
		if w.stopping.Load() {
			w.stopMu.Unlock()
			<-w.sem
			return false
		}
		w.wg.Add(1)
		w.stopMu.Unlock()

		task, err := w.claim()
		if err != nil || task == nil {
			w.wg.Done()
			<-w.sem
			if err != nil && w.ctx.Err() == nil {
				w.logger.Error("failed to claim task",
					logger.Error(err))
			}
			return w.ctx.Err() == nil
		}

		go func() {
			defer w.wg.Done()
			defer func() { <-w.sem }()

			if err := w.processTask(task); err != nil && !errors.Is(err, ErrHandlerNotFound) {
				w.logger.Error("failed to process task",
					logger.TaskID(task.ID.String()),
					logger.Error(err))
			}
		}()
	}
}

// claim pulls the next due task; (nil, nil) means nothing is due
func (w *Worker) claim() (*Task, error) {
	task, err := w.repo.ClaimTask(w.ctx, w.workerID, w.queues, w.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrNoTaskToClaim) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}

	if task != nil {
		w.logger.Debug("claimed task",
			logger.TaskID(task.ID.String()),
			logger.TaskName(task.TaskName),
			slog.Int("attempt", task.Attempts),
			slog.String("queue", task.Queue))
	}

	return task, nil
}

// bookkeepingContext outlives worker cancellation so in-flight tasks can settle during shutdown
func (w *Worker) bookkeepingContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(w.ctx), w.lockTimeout)
}

// processTask executes a task with its handler
func (w *Worker) processTask(task *Task) (retErr error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler: %v", r)
			w.logger.Error("handler panicked",
				logger.TaskID(task.ID.String()),
				logger.TaskName(task.TaskName),
				slog.Any("panic", r))
			_ = w.handleTaskFailure(task, retErr, time.Since(start))
		}
	}()

	w.mu.RLock()
	handler, ok := w.handlers[task.TaskName]
	w.mu.RUnlock()

	if !ok {
		return w.handleMissingHandler(task)
	}

	// Not tied to the worker lifecycle so graceful shutdown lets tasks finish
	ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), w.taskTimeout)
	defer cancel()

	stopHeartbeat := w.keepLocked(ctx, task)
	err := handler.Handle(ctx, task.attempt(), task.Payload)
	stopHeartbeat()
	duration := time.Since(start)

	if err != nil {
		return w.handleTaskFailure(task, err, duration)
	}

	return w.handleTaskSuccess(task, duration)
}

// handleMissingHandler parks tasks nobody can run; retries would fail the same way
func (w *Worker) handleMissingHandler(task *Task) error {
	w.logger.Error("no handler registered for task type",
		logger.TaskID(task.ID.String()),
		logger.TaskName(task.TaskName))

	ctx, cancel := w.bookkeepingContext()
	defer cancel()

	errorMsg := "no handler registered for task type: " + task.TaskName
	if err := w.repo.MoveToDLQ(ctx, task.ID, errorMsg); err != nil {
		return fmt.Errorf("failed to move task %s to DLQ: %w", task.ID, err)
	}

	return ErrHandlerNotFound
}

// handleTaskFailure reschedules the task with exponential backoff, or parks it
// in the dead letter set once the attempt was the last one allowed.
func (w *Worker) handleTaskFailure(task *Task, execErr error, duration time.Duration) error {
	attempt := task.attempt()

	ctx, cancel := w.bookkeepingContext()
	defer cancel()

	if attempt.Final() {
		if err := w.repo.MoveToDLQ(ctx, task.ID, execErr.Error()); err != nil {
			return fmt.Errorf("failed to move task %s to DLQ after max retries: %w", task.ID, err)
		}

		w.logger.Warn("task failed permanently, moved to dead letter queue",
			logger.TaskID(task.ID.String()),
			logger.TaskName(task.TaskName),
			logger.Attempt(attempt.Number, attempt.MaxAttempts),
			logger.Duration(duration),
			logger.Error(execErr))

		return nil
	}

	backoff := task.Retry.Delay(attempt.Number)
	if err := w.repo.RetryTask(ctx, task.ID, execErr.Error(), w.now().Add(backoff)); err != nil {
		return fmt.Errorf("failed to reschedule task %s: %w", task.ID, err)
	}

	w.logger.Info("task attempt failed, retry scheduled",
		logger.TaskID(task.ID.String()),
		logger.TaskName(task.TaskName),
		logger.Attempt(attempt.Number, attempt.MaxAttempts),
		slog.Duration("backoff", backoff),
		logger.Duration(duration),
		logger.Error(execErr))

	return nil
}

// handleTaskSuccess processes successful task completion
func (w *Worker) handleTaskSuccess(task *Task, duration time.Duration) error {
	ctx, cancel := w.bookkeepingContext()
	defer cancel()

	if err := w.repo.CompleteTask(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to mark task %s as completed: %w", task.ID, err)
	}

	w.logger.Info("task completed successfully",
		logger.TaskID(task.ID.String()),
		logger.TaskName(task.TaskName),
		slog.String("queue", task.Queue),
		slog.Int("attempt", task.Attempts),
		logger.Duration(duration))

	return nil
}

// keepLocked extends the task lock every half lock timeout until the returned
// stop func is called, so RequeueExpired never hands a running task to
// another worker. Stop blocks until the heartbeat goroutine has exited.
func (w *Worker) keepLocked(ctx context.Context, task *Task) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(w.lockTimeout / 2)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.repo.ExtendLock(ctx, task.ID, w.lockTimeout); err != nil && ctx.Err() == nil {
					w.logger.Warn("failed to extend task lock",
						logger.TaskID(task.ID.String()),
						logger.TaskName(task.TaskName),
						logger.Error(err))
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// ID returns the identifier the worker claims tasks under.
func (w *Worker) ID() uuid.UUID {
	return w.workerID
}
