package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps tasks in Redis:
//
//	{prefix}:task:{id}       hash with the task fields
//	{prefix}:{queue}:delayed zset of pending task ids scored by due time (unix ms)
//	{prefix}:{queue}:active  zset of claimed task ids scored by lock expiry (unix ms)
//	{prefix}:{queue}:dead    zset of exhausted task ids scored by failure time (unix ms)
//
// Every state change runs as a Lua script so a task id lives in exactly one set.
// Scripts derive task keys from the prefix, so the storage targets a single
// Redis node rather than a cluster.
type RedisStorage struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// RedisStorageOption configures RedisStorage
type RedisStorageOption func(*RedisStorage)

// WithKeyPrefix sets the namespace for all keys
func WithKeyPrefix(prefix string) RedisStorageOption {
	return func(s *RedisStorage) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRedisClock overrides the time source
func WithRedisClock(now func() time.Time) RedisStorageOption {
	return func(s *RedisStorage) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRedisStorage creates a storage on top of an established client
func NewRedisStorage(client redis.UniversalClient, opts ...RedisStorageOption) (*RedisStorage, error) {
	if client == nil {
		return nil, ErrRepositoryNil
	}

	s := &RedisStorage{
		client: client,
		prefix: "mailscheduler",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

var (
	createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return 0 end
redis.call('HSET', KEYS[1], unpack(ARGV, 3))
redis.call('ZADD', KEYS[2], ARGV[1], ARGV[2])
return 1`)

	claimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #ids == 0 then return false end
local id = ids[1]
redis.call('ZREM', KEYS[1], id)
redis.call('ZADD', KEYS[2], ARGV[2], id)
local key = ARGV[4] .. id
redis.call('HSET', key, 'status', 'processing', 'locked_by', ARGV[3], 'locked_until', ARGV[2])
redis.call('HINCRBY', key, 'attempts', 1)
return id`)

	completeScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then return 0 end
if redis.call('HGET', KEYS[2], 'remove_on_complete') == '1' then
  redis.call('DEL', KEYS[2])
else
  redis.call('HSET', KEYS[2], 'status', 'completed', 'processed_at', ARGV[2])
  redis.call('HDEL', KEYS[2], 'locked_by', 'locked_until')
end
return 1`)

	retryScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then return 0 end
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
redis.call('HSET', KEYS[3], 'status', 'pending', 'scheduled_at', ARGV[2], 'error', ARGV[3])
redis.call('HDEL', KEYS[3], 'locked_by', 'locked_until')
return 1`)

	deadScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[4]) == 0 then return 0 end
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('ZADD', KEYS[3], ARGV[2], ARGV[1])
redis.call('HSET', KEYS[4], 'status', 'failed', 'error', ARGV[3], 'processed_at', ARGV[2])
redis.call('HDEL', KEYS[4], 'locked_by', 'locked_until')
return 1`)

	removeScript = redis.NewScript(`
if redis.call('ZSCORE', KEYS[1], ARGV[1]) then return -1 end
if redis.call('ZREM', KEYS[2], ARGV[1]) == 1 then
  redis.call('DEL', KEYS[3])
  return 1
end
return 0`)

	extendScript = redis.NewScript(`
if not redis.call('ZSCORE', KEYS[1], ARGV[1]) then return 0 end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
redis.call('HSET', KEYS[2], 'locked_until', ARGV[2])
return 1`)

	requeueScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('ZADD', KEYS[2], ARGV[1], id)
  local key = ARGV[2] .. id
  redis.call('HSET', key, 'status', 'pending', 'scheduled_at', ARGV[1])
  redis.call('HDEL', key, 'locked_by', 'locked_until')
end
return #ids`)
)

// CreateTask implements EnqueuerRepository
func (s *RedisStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	args := []any{task.ScheduledAt.UnixMilli(), task.ID.String()}
	args = append(args, encodeTask(task)...)

	created, err := createScript.Run(ctx, s.client,
		[]string{s.taskKey(task.ID), s.delayedKey(task.Queue)},
		args...,
	).Int()
	if err != nil {
		return fmt.Errorf("redis create task: %w", err)
	}
	if created == 0 {
		return fmt.Errorf("%w: %s", ErrTaskExists, task.ID)
	}

	return nil
}

// RemoveTask implements EnqueuerRepository
func (s *RedisStorage) RemoveTask(ctx context.Context, taskID uuid.UUID) error {
	queue, err := s.queueOf(ctx, taskID)
	if err != nil {
		return err
	}

	res, err := removeScript.Run(ctx, s.client,
		[]string{s.activeKey(queue), s.delayedKey(queue), s.taskKey(taskID)},
		taskID.String(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis remove task: %w", err)
	}

	switch res {
	case 1:
		return nil
	case -1:
		return ErrTaskActive
	default:
		return ErrTaskNotFound
	}
}

// ClaimTask implements WorkerRepository
func (s *RedisStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	now := s.now()
	lockUntil := now.Add(lockDuration)

	for _, queue := range queues {
		id, err := claimScript.Run(ctx, s.client,
			[]string{s.delayedKey(queue), s.activeKey(queue)},
			now.UnixMilli(), lockUntil.UnixMilli(), workerID.String(), s.taskKeyPrefix(),
		).Text()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis claim task: %w", err)
		}

		taskID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("redis claim task: malformed id %q: %w", id, err)
		}
		return s.GetTask(ctx, taskID)
	}

	return nil, ErrNoTaskToClaim
}

// CompleteTask implements WorkerRepository
func (s *RedisStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	queue, err := s.queueOf(ctx, taskID)
	if err != nil {
		return err
	}

	res, err := completeScript.Run(ctx, s.client,
		[]string{s.activeKey(queue), s.taskKey(taskID)},
		taskID.String(), s.now().UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis complete task: %w", err)
	}
	if res == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
	}

	return nil
}

// RetryTask implements WorkerRepository
func (s *RedisStorage) RetryTask(ctx context.Context, taskID uuid.UUID, errorMsg string, runAt time.Time) error {
	queue, err := s.queueOf(ctx, taskID)
	if err != nil {
		return err
	}

	res, err := retryScript.Run(ctx, s.client,
		[]string{s.activeKey(queue), s.delayedKey(queue), s.taskKey(taskID)},
		taskID.String(), runAt.UnixMilli(), errorMsg,
	).Int()
	if err != nil {
		return fmt.Errorf("redis retry task: %w", err)
	}
	if res == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
	}

	return nil
}

// MoveToDLQ implements WorkerRepository
func (s *RedisStorage) MoveToDLQ(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	queue, err := s.queueOf(ctx, taskID)
	if err != nil {
		return err
	}

	res, err := deadScript.Run(ctx, s.client,
		[]string{s.activeKey(queue), s.delayedKey(queue), s.deadKey(queue), s.taskKey(taskID)},
		taskID.String(), s.now().UnixMilli(), errorMsg,
	).Int()
	if err != nil {
		return fmt.Errorf("redis move task to dlq: %w", err)
	}
	if res == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	return nil
}

// ExtendLock implements WorkerRepository
func (s *RedisStorage) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	queue, err := s.queueOf(ctx, taskID)
	if err != nil {
		return err
	}

	res, err := extendScript.Run(ctx, s.client,
		[]string{s.activeKey(queue), s.taskKey(taskID)},
		taskID.String(), s.now().Add(duration).UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis extend lock: %w", err)
	}
	if res == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
	}

	return nil
}

// RequeueExpired implements WorkerRepository
func (s *RedisStorage) RequeueExpired(ctx context.Context, queues []string) (int, error) {
	now := s.now().UnixMilli()
	total := 0

	for _, queue := range queues {
		n, err := requeueScript.Run(ctx, s.client,
			[]string{s.activeKey(queue), s.delayedKey(queue)},
			now, s.taskKeyPrefix(),
		).Int()
		if err != nil {
			return total, fmt.Errorf("redis requeue expired: %w", err)
		}
		total += n
	}

	return total, nil
}

// GetTask loads a task by id
func (s *RedisStorage) GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	fields, err := s.client.HGetAll(ctx, s.taskKey(taskID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get task: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	return decodeTask(taskID, fields)
}

// GetPendingTaskByName implements SchedulerRepository. It scans the pending
// and active sets of queue, so periodic tasks belong on a queue of their own.
func (s *RedisStorage) GetPendingTaskByName(ctx context.Context, queue, name string) (*Task, error) {
	for _, key := range []string{s.delayedKey(queue), s.activeKey(queue)} {
		ids, err := s.client.ZRange(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("redis list tasks: %w", err)
		}
		for _, raw := range ids {
			id, err := uuid.Parse(raw)
			if err != nil {
				continue
			}
			taskName, err := s.client.HGet(ctx, s.taskKey(id), "name").Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("redis get task name: %w", err)
			}
			if taskName == name {
				return s.GetTask(ctx, id)
			}
		}
	}
	return nil, ErrTaskNotFound
}

// DeadTaskIDs lists the ids parked in a queue's dead letter set, oldest first
func (s *RedisStorage) DeadTaskIDs(ctx context.Context, queue string) ([]string, error) {
	ids, err := s.client.ZRange(ctx, s.deadKey(queue), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list dead tasks: %w", err)
	}
	return ids, nil
}

func (s *RedisStorage) queueOf(ctx context.Context, taskID uuid.UUID) (string, error) {
	queue, err := s.client.HGet(ctx, s.taskKey(taskID), "queue").Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if err != nil {
		return "", fmt.Errorf("redis get task queue: %w", err)
	}
	return queue, nil
}

func (s *RedisStorage) taskKeyPrefix() string { return s.prefix + ":task:" }
func (s *RedisStorage) taskKey(id uuid.UUID) string { return s.taskKeyPrefix() + id.String() }
func (s *RedisStorage) delayedKey(queue string) string { return s.prefix + ":" + queue + ":delayed" }
func (s *RedisStorage) activeKey(queue string) string { return s.prefix + ":" + queue + ":active" }
func (s *RedisStorage) deadKey(queue string) string { return s.prefix + ":" + queue + ":dead" }

// encodeTask flattens a task into HSET field/value pairs
func encodeTask(t *Task) []any {
	removeOnComplete := "0"
	if t.RemoveOnComplete {
		removeOnComplete = "1"
	}

	fields := []any{
		"queue", t.Queue,
		"name", t.TaskName,
		"payload", string(t.Payload),
		"status", string(t.Status),
		"attempts", t.Attempts,
		"max_retries", t.Retry.MaxRetries,
		"backoff_ms", t.Retry.Backoff.Milliseconds(),
		"remove_on_complete", removeOnComplete,
		"scheduled_at", t.ScheduledAt.UnixMilli(),
		"created_at", t.CreatedAt.UnixMilli(),
	}
	if t.Error != nil {
		fields = append(fields, "error", *t.Error)
	}

	return fields
}

func decodeTask(id uuid.UUID, f map[string]string) (*Task, error) {
	task := &Task{
		ID:               id,
		Queue:            f["queue"],
		TaskName:         f["name"],
		Payload:          []byte(f["payload"]),
		Status:           TaskStatus(f["status"]),
		RemoveOnComplete: f["remove_on_complete"] == "1",
	}

	attempts, err := parseInt(f, "attempts")
	if err != nil {
		return nil, err
	}
	maxRetries, err := parseInt(f, "max_retries")
	if err != nil {
		return nil, err
	}
	backoffMs, err := parseInt(f, "backoff_ms")
	if err != nil {
		return nil, err
	}
	scheduledAt, err := parseInt(f, "scheduled_at")
	if err != nil {
		return nil, err
	}
	createdAt, err := parseInt(f, "created_at")
	if err != nil {
		return nil, err
	}

	task.Attempts = int(attempts)
	task.Retry = RetryPolicy{MaxRetries: int(maxRetries), Backoff: time.Duration(backoffMs) * time.Millisecond}
	task.ScheduledAt = time.UnixMilli(scheduledAt)
	task.CreatedAt = time.UnixMilli(createdAt)

	if msg, ok := f["error"]; ok {
		task.Error = &msg
	}
	if _, ok := f["locked_until"]; ok {
		ms, err := parseInt(f, "locked_until")
		if err != nil {
			return nil, err
		}
		lockedUntil := time.UnixMilli(ms)
		task.LockedUntil = &lockedUntil
	}
	if v, ok := f["locked_by"]; ok {
		if workerID, err := uuid.Parse(v); err == nil {
			task.LockedBy = &workerID
		}
	}
	if _, ok := f["processed_at"]; ok {
		ms, err := parseInt(f, "processed_at")
		if err != nil {
			return nil, err
		}
		processedAt := time.UnixMilli(ms)
		task.ProcessedAt = &processedAt
	}

	return task, nil
}

func parseInt(f map[string]string, field string) (int64, error) {
	v, ok := f[field]
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode task field %s: %w", field, err)
	}
	return n, nil
}
