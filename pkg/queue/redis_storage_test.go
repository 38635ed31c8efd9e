package queue_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailscheduler/pkg/queue"
)

// newRedisStorage connects to TEST_REDIS_URL under a throwaway key prefix.
func newRedisStorage(t *testing.T, opts ...queue.RedisStorageOption) *queue.RedisStorage {
	t.Helper()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL is not set")
	}

	redisOpts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(redisOpts)

	prefix := "test:" + uuid.NewString()
	t.Cleanup(func() {
		ctx := context.Background()
		iter := client.Scan(ctx, 0, prefix+":*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
		_ = client.Close()
	})

	storage, err := queue.NewRedisStorage(client, append([]queue.RedisStorageOption{queue.WithKeyPrefix(prefix)}, opts...)...)
	require.NoError(t, err)
	return storage
}

func TestNewRedisStorage(t *testing.T) {
	t.Parallel()

	s, err := queue.NewRedisStorage(nil)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, queue.ErrRepositoryNil)
}

func TestRedisStorage_Lifecycle(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	s := newRedisStorage(t, queue.WithRedisClock(clock.Now))
	ctx := context.Background()
	queues := []string{"default"}

	task := newTask("default", clock.Now().Add(time.Second))
	task.Payload = []byte(`{"email_id":1}`)
	require.NoError(t, s.CreateTask(ctx, task))
	assert.ErrorIs(t, s.CreateTask(ctx, task), queue.ErrTaskExists)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.TaskName, got.TaskName)
	assert.Equal(t, task.Payload, got.Payload)
	assert.Equal(t, task.Retry, got.Retry)
	assert.True(t, got.ScheduledAt.Equal(task.ScheduledAt))

	_, err = s.ClaimTask(ctx, uuid.New(), queues, time.Minute)
	assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)

	clock.Advance(time.Second)
	workerID := uuid.New()
	claimed, err := s.ClaimTask(ctx, workerID, queues, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, task.ID, claimed.ID)
	assert.Equal(t, 1, claimed.Attempts)
	assert.Equal(t, queue.TaskStatusProcessing, claimed.Status)
	require.NotNil(t, claimed.LockedBy)
	assert.Equal(t, workerID, *claimed.LockedBy)

	assert.ErrorIs(t, s.RemoveTask(ctx, task.ID), queue.ErrTaskActive)

	runAt := clock.Now().Add(2 * time.Second)
	require.NoError(t, s.RetryTask(ctx, task.ID, "timeout", runAt))
	assert.ErrorIs(t, s.RetryTask(ctx, task.ID, "timeout", runAt), queue.ErrTaskNotProcessing)

	clock.Advance(2 * time.Second)
	claimed, err = s.ClaimTask(ctx, workerID, queues, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, claimed.Attempts)
	require.NotNil(t, claimed.Error)
	assert.Equal(t, "timeout", *claimed.Error)

	require.NoError(t, s.CompleteTask(ctx, task.ID))
	_, err = s.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, queue.ErrTaskNotFound)
}

func TestRedisStorage_RemovePending(t *testing.T) {
	t.Parallel()

	s := newRedisStorage(t)
	ctx := context.Background()

	task := newTask("default", time.Now().Add(time.Hour))
	require.NoError(t, s.CreateTask(ctx, task))
	require.NoError(t, s.RemoveTask(ctx, task.ID))
	assert.ErrorIs(t, s.RemoveTask(ctx, task.ID), queue.ErrTaskNotFound)

	_, err := s.ClaimTask(ctx, uuid.New(), []string{"default"}, time.Minute)
	assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
}

func TestRedisStorage_DeadLetterAndRequeue(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	s := newRedisStorage(t, queue.WithRedisClock(clock.Now))
	ctx := context.Background()
	queues := []string{"default"}

	doomed := newTask("default", clock.Now())
	require.NoError(t, s.CreateTask(ctx, doomed))
	_, err := s.ClaimTask(ctx, uuid.New(), queues, time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.MoveToDLQ(ctx, doomed.ID, "bounced"))

	dead, err := s.DeadTaskIDs(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, []string{doomed.ID.String()}, dead)

	got, err := s.GetTask(ctx, doomed.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.TaskStatusFailed, got.Status)
	assert.NotNil(t, got.ProcessedAt)

	stuck := newTask("default", clock.Now())
	stuck.RemoveOnComplete = false
	require.NoError(t, s.CreateTask(ctx, stuck))
	_, err = s.ClaimTask(ctx, uuid.New(), queues, time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.ExtendLock(ctx, stuck.ID, 2*time.Minute))

	clock.Advance(90 * time.Second)
	n, err := s.RequeueExpired(ctx, queues)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(time.Minute)
	n, err = s.RequeueExpired(ctx, queues)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reclaimed, err := s.ClaimTask(ctx, uuid.New(), queues, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, stuck.ID, reclaimed.ID)
	assert.Equal(t, 2, reclaimed.Attempts)

	require.NoError(t, s.CompleteTask(ctx, stuck.ID))
	kept, err := s.GetTask(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.TaskStatusCompleted, kept.Status)
}
