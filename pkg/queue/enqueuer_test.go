package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailscheduler/pkg/queue"
)

type mockEnqueuerRepo struct {
	mu        sync.Mutex
	tasks     []*queue.Task
	removed   []uuid.UUID
	createErr error
	removeErr error
}

func (m *mockEnqueuerRepo) CreateTask(ctx context.Context, task *queue.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *mockEnqueuerRepo) RemoveTask(ctx context.Context, taskID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	m.removed = append(m.removed, taskID)
	return nil
}

func (m *mockEnqueuerRepo) GetTask(ctx context.Context, taskID uuid.UUID) (*queue.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, task := range m.tasks {
		if task.ID == taskID {
			return task, nil
		}
	}
	return nil, queue.ErrTaskNotFound
}

type reminderPayload struct {
	EmailID int64 `json:"email_id"`
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestNewEnqueuer(t *testing.T) {
	t.Parallel()

	t.Run("nil repository", func(t *testing.T) {
		t.Parallel()

		enq, err := queue.NewEnqueuer(nil)
		assert.Nil(t, enq)
		assert.ErrorIs(t, err, queue.ErrRepositoryNil)
	})

	t.Run("with options", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		enq, err := queue.NewEnqueuer(repo,
			queue.WithDefaultQueue("emails"),
			queue.WithDefaultRetryPolicy(queue.RetryPolicy{MaxRetries: 1, Backoff: time.Second}),
		)
		require.NoError(t, err)

		_, err = enq.Enqueue(context.Background(), reminderPayload{EmailID: 1})
		require.NoError(t, err)

		require.Len(t, repo.tasks, 1)
		assert.Equal(t, "emails", repo.tasks[0].Queue)
		assert.Equal(t, 1, repo.tasks[0].Retry.MaxRetries)
	})
}

func TestEnqueuer_Enqueue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		enq, err := queue.NewEnqueuer(repo, queue.WithEnqueuerClock(fixedClock(now)))
		require.NoError(t, err)

		handle, err := enq.Enqueue(context.Background(), reminderPayload{EmailID: 7})
		require.NoError(t, err)

		require.Len(t, repo.tasks, 1)
		task := repo.tasks[0]
		assert.Equal(t, task.ID.String(), handle)
		assert.Equal(t, queue.DefaultQueueName, task.Queue)
		assert.Equal(t, "queue_test.reminderPayload", task.TaskName)
		assert.JSONEq(t, `{"email_id":7}`, string(task.Payload))
		assert.Equal(t, queue.TaskStatusPending, task.Status)
		assert.Equal(t, queue.DefaultRetryPolicy(), task.Retry)
		assert.True(t, task.RemoveOnComplete)
		assert.Equal(t, now, task.ScheduledAt)
		assert.Equal(t, now, task.CreatedAt)
		assert.Zero(t, task.Attempts)
	})

	t.Run("delay shifts due time", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		enq, err := queue.NewEnqueuer(repo, queue.WithEnqueuerClock(fixedClock(now)))
		require.NoError(t, err)

		_, err = enq.Enqueue(context.Background(), reminderPayload{}, queue.WithDelay(90*time.Second))
		require.NoError(t, err)
		assert.Equal(t, now.Add(90*time.Second), repo.tasks[0].ScheduledAt)
	})

	t.Run("non-positive delay means now", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		enq, err := queue.NewEnqueuer(repo, queue.WithEnqueuerClock(fixedClock(now)))
		require.NoError(t, err)

		_, err = enq.Enqueue(context.Background(), reminderPayload{}, queue.WithDelay(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, now, repo.tasks[0].ScheduledAt)
	})

	t.Run("per task options", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		enq, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		_, err = enq.Enqueue(context.Background(), reminderPayload{},
			queue.WithQueue("priority"),
			queue.WithTaskName("custom"),
			queue.WithRetryPolicy(queue.RetryPolicy{MaxRetries: 5, Backoff: time.Millisecond}),
			queue.WithRemoveOnComplete(false),
		)
		require.NoError(t, err)

		task := repo.tasks[0]
		assert.Equal(t, "priority", task.Queue)
		assert.Equal(t, "custom", task.TaskName)
		assert.Equal(t, 5, task.Retry.MaxRetries)
		assert.False(t, task.RemoveOnComplete)
	})

	t.Run("retry policy outside bounds is ignored", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		enq, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		_, err = enq.Enqueue(context.Background(), reminderPayload{},
			queue.WithRetryPolicy(queue.RetryPolicy{MaxRetries: 11}))
		require.NoError(t, err)
		assert.Equal(t, queue.DefaultRetryPolicy(), repo.tasks[0].Retry)
	})

	t.Run("nil payload", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		enq, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		_, err = enq.Enqueue(context.Background(), nil)
		assert.ErrorIs(t, err, queue.ErrPayloadNil)
		assert.Empty(t, repo.tasks)
	})

	t.Run("unmarshalable payload", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		enq, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		_, err = enq.Enqueue(context.Background(), make(chan int))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to marshal payload")
	})

	t.Run("repository error is wrapped", func(t *testing.T) {
		t.Parallel()

		repoErr := errors.New("broker down")
		enq, err := queue.NewEnqueuer(&mockEnqueuerRepo{createErr: repoErr})
		require.NoError(t, err)

		handle, err := enq.Enqueue(context.Background(), reminderPayload{})
		assert.Empty(t, handle)
		assert.ErrorIs(t, err, repoErr)
	})

	t.Run("handles are unique", func(t *testing.T) {
		t.Parallel()

		enq, err := queue.NewEnqueuer(&mockEnqueuerRepo{})
		require.NoError(t, err)

		seen := make(map[string]bool)
		for range 50 {
			h, err := enq.Enqueue(context.Background(), reminderPayload{})
			require.NoError(t, err)
			assert.False(t, seen[h])
			seen[h] = true
		}
	})

	t.Run("map and slice payloads", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		enq, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		_, err = enq.Enqueue(context.Background(), map[string]string{"k": "v"})
		require.NoError(t, err)
		_, err = enq.Enqueue(context.Background(), []string{"a"})
		require.NoError(t, err)

		assert.Equal(t, "map[string]string", repo.tasks[0].TaskName)
		assert.Equal(t, "[]string", repo.tasks[1].TaskName)
	})
}

func TestEnqueuer_Remove(t *testing.T) {
	t.Parallel()

	t.Run("invalid handle", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		enq, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		err = enq.Remove(context.Background(), "not-a-uuid")
		assert.ErrorIs(t, err, queue.ErrInvalidHandle)
		assert.Empty(t, repo.removed)
	})

	t.Run("passes id to repository", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		enq, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		id := uuid.New()
		require.NoError(t, enq.Remove(context.Background(), id.String()))
		assert.Equal(t, []uuid.UUID{id}, repo.removed)
	})

	t.Run("active task error passes through", func(t *testing.T) {
		t.Parallel()

		enq, err := queue.NewEnqueuer(&mockEnqueuerRepo{removeErr: queue.ErrTaskActive})
		require.NoError(t, err)

		err = enq.Remove(context.Background(), uuid.NewString())
		assert.ErrorIs(t, err, queue.ErrTaskActive)
	})
}
