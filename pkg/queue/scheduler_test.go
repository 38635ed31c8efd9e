package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailscheduler/pkg/queue"
)

type maintenancePayload struct{}

func newTestScheduler(t *testing.T, repo queue.SchedulerRepository, clock *testClock) *queue.Scheduler {
	t.Helper()

	s, err := queue.NewScheduler(repo,
		queue.WithCheckInterval(5*time.Millisecond),
		queue.WithSchedulerLogger(discardLogger()),
		queue.WithSchedulerClock(clock.Now),
	)
	require.NoError(t, err)
	return s
}

func TestEveryInterval(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("aligned to the interval", func(t *testing.T) {
		t.Parallel()
		s := queue.EveryInterval(time.Minute)
		assert.Equal(t, base.Add(time.Minute), s.Next(base))
		assert.Equal(t, base.Add(time.Minute), s.Next(base.Add(20*time.Second)))
		assert.Equal(t, "every 1m0s", s.String())
	})

	t.Run("sub-second interval is raised", func(t *testing.T) {
		t.Parallel()
		s := queue.EveryInterval(time.Millisecond)
		assert.Equal(t, base.Add(time.Second), s.Next(base))
	})
}

func TestNewScheduler(t *testing.T) {
	t.Parallel()

	t.Run("nil repository", func(t *testing.T) {
		t.Parallel()
		_, err := queue.NewScheduler(nil)
		assert.ErrorIs(t, err, queue.ErrRepositoryNil)
	})

	t.Run("start without tasks", func(t *testing.T) {
		t.Parallel()
		s, err := queue.NewScheduler(queue.NewMemoryStorage())
		require.NoError(t, err)
		assert.ErrorIs(t, s.Start(context.Background()), queue.ErrSchedulerNotConfigured)
	})

	t.Run("duplicate and invalid tasks", func(t *testing.T) {
		t.Parallel()
		s, err := queue.NewScheduler(queue.NewMemoryStorage())
		require.NoError(t, err)

		require.NoError(t, s.AddTask("cleanup", queue.EveryInterval(time.Minute)))
		assert.ErrorIs(t, s.AddTask("cleanup", queue.EveryInterval(time.Hour)), queue.ErrTaskAlreadyRegistered)
		assert.ErrorIs(t, s.AddTask("", queue.EveryInterval(time.Minute)), queue.ErrInvalidPeriodicTask)
		assert.ErrorIs(t, s.AddTask("nightly", nil), queue.ErrInvalidPeriodicTask)
	})
}

func TestScheduler_Runs(t *testing.T) {
	t.Parallel()

	t.Run("creates a run when due and waits for it to finish", func(t *testing.T) {
		t.Parallel()

		clock := newTestClock()
		clock.Advance(30 * time.Second)
		storage := queue.NewMemoryStorageWithClock(clock.Now)
		s := newTestScheduler(t, storage, clock)
		require.NoError(t, s.AddTask("cleanup", queue.EveryInterval(time.Minute), queue.WithTaskQueue("maintenance")))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Run(ctx)() }()

		// not due yet
		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, 0, storage.Len())

		clock.Advance(30 * time.Second)
		require.Eventually(t, func() bool { return storage.Len() == 1 }, time.Second, 5*time.Millisecond)

		run, err := storage.GetPendingTaskByName(ctx, "maintenance", "cleanup")
		require.NoError(t, err)
		assert.Equal(t, queue.TaskStatusPending, run.Status)
		assert.JSONEq(t, `{}`, string(run.Payload))
		assert.True(t, run.RemoveOnComplete)
		assert.Equal(t, 1, run.Retry.MaxAttempts())

		// the previous run is still pending
		clock.Advance(time.Minute)
		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, 1, storage.Len())

		require.NoError(t, storage.RemoveTask(ctx, run.ID))
		clock.Advance(time.Minute)
		require.Eventually(t, func() bool { return storage.Len() == 1 }, time.Second, 5*time.Millisecond)

		next, err := storage.GetPendingTaskByName(ctx, "maintenance", "cleanup")
		require.NoError(t, err)
		assert.NotEqual(t, run.ID, next.ID)

		cancel()
		assert.NoError(t, <-done)
	})

	t.Run("worker executes runs once", func(t *testing.T) {
		t.Parallel()

		clock := newTestClock()
		storage := queue.NewMemoryStorageWithClock(clock.Now)

		var calls atomic.Int32
		h := queue.NewTaskHandler(func(ctx context.Context, _ queue.Attempt, _ maintenancePayload) error {
			calls.Add(1)
			return nil
		})

		s := newTestScheduler(t, storage, clock)
		require.NoError(t, s.AddTask(h.Name(), queue.EveryInterval(time.Minute), queue.WithTaskQueue("maintenance")))

		w := newTestWorker(t, storage, queue.WithQueues("maintenance"), queue.WithWorkerClock(clock.Now))
		require.NoError(t, w.RegisterHandler(h))
		require.NoError(t, w.Start(context.Background()))
		defer func() { _ = w.Stop() }()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = s.Start(ctx) }()

		clock.Advance(time.Minute)
		require.Eventually(t, func() bool { return calls.Load() == 1 && storage.Len() == 0 }, time.Second, 5*time.Millisecond)

		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("storage errors do not stop the scheduler", func(t *testing.T) {
		t.Parallel()

		clock := newTestClock()
		repo := &flakySchedulerRepo{MemoryStorage: queue.NewMemoryStorageWithClock(clock.Now)}
		repo.failures.Store(2)

		s := newTestScheduler(t, repo, clock)
		require.NoError(t, s.AddTask("cleanup", queue.EveryInterval(time.Minute)))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = s.Start(ctx) }()

		clock.Advance(time.Minute)
		// failed lookups keep the run due, so the next check creates it
		require.Eventually(t, func() bool { return repo.Len() == 1 }, time.Second, 5*time.Millisecond)
		assert.LessOrEqual(t, repo.failures.Load(), int32(0))
	})
}

type flakySchedulerRepo struct {
	*queue.MemoryStorage
	failures atomic.Int32
}

func (r *flakySchedulerRepo) GetPendingTaskByName(ctx context.Context, q, name string) (*queue.Task, error) {
	if r.failures.Add(-1) >= 0 {
		return nil, errors.New("connection reset")
	}
	return r.MemoryStorage.GetPendingTaskByName(ctx, q, name)
}

func TestStorage_GetPendingTaskByName(t *testing.T) {
	t.Parallel()

	storages := map[string]func(t *testing.T, clock *testClock) queue.SchedulerRepository{
		"memory": func(t *testing.T, clock *testClock) queue.SchedulerRepository {
			return queue.NewMemoryStorageWithClock(clock.Now)
		},
		"redis": func(t *testing.T, clock *testClock) queue.SchedulerRepository {
			return newRedisStorage(t, queue.WithRedisClock(clock.Now))
		},
	}

	for name, newStorage := range storages {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			clock := newTestClock()
			s := newStorage(t, clock)

			_, err := s.GetPendingTaskByName(ctx, "maintenance", "test")
			assert.ErrorIs(t, err, queue.ErrTaskNotFound)

			other := newTask("default", clock.Now())
			require.NoError(t, s.CreateTask(ctx, other))
			_, err = s.GetPendingTaskByName(ctx, "maintenance", "test")
			assert.ErrorIs(t, err, queue.ErrTaskNotFound, "same name on another queue")

			run := newTask("maintenance", clock.Now().Add(time.Minute))
			require.NoError(t, s.CreateTask(ctx, run))
			got, err := s.GetPendingTaskByName(ctx, "maintenance", "test")
			require.NoError(t, err)
			assert.Equal(t, run.ID, got.ID)
			assert.Equal(t, queue.TaskStatusPending, got.Status)
		})
	}
}
