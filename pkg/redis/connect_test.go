package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailscheduler/pkg/redis"
)

func TestConnect(t *testing.T) {
	t.Parallel()

	t.Run("empty url", func(t *testing.T) {
		t.Parallel()

		client, err := redis.Connect(context.Background(), redis.Config{RetryAttempts: 1})
		assert.ErrorIs(t, err, redis.ErrEmptyConnectionURL)
		assert.Nil(t, client)
	})

	t.Run("invalid attempts", func(t *testing.T) {
		t.Parallel()

		client, err := redis.Connect(context.Background(), redis.Config{ConnectionURL: "redis://localhost:6379/0"})
		assert.ErrorIs(t, err, redis.ErrInvalidRetryAttempts)
		assert.Nil(t, client)
	})

	t.Run("malformed url", func(t *testing.T) {
		t.Parallel()

		client, err := redis.Connect(context.Background(), redis.Config{
			ConnectionURL: "mysql://nope",
			RetryAttempts: 1,
		})
		assert.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)
		assert.Nil(t, client)
	})

	t.Run("gives up after fixed attempts", func(t *testing.T) {
		t.Parallel()

		start := time.Now()
		client, err := redis.Connect(context.Background(), redis.Config{
			ConnectionURL:  "redis://127.0.0.1:1/0",
			RetryAttempts:  3,
			RetryInterval:  50 * time.Millisecond,
			ConnectTimeout: 5 * time.Second,
		})
		elapsed := time.Since(start)

		require.ErrorIs(t, err, redis.ErrRedisNotReady)
		assert.Nil(t, client)
		// two pauses between three attempts, none after the last one
		assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
		assert.Contains(t, err.Error(), "attempt 3/3")
	})

	t.Run("stops waiting when context ends", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		client, err := redis.Connect(ctx, redis.Config{
			ConnectionURL: "redis://127.0.0.1:1/0",
			RetryAttempts: 100,
			RetryInterval: time.Second,
		})
		require.ErrorIs(t, err, redis.ErrRedisNotReady)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Nil(t, client)
	})

	t.Run("connects to live broker", func(t *testing.T) {
		t.Parallel()

		url := os.Getenv("TEST_REDIS_URL")
		if url == "" {
			t.Skip("TEST_REDIS_URL not set")
		}

		client, err := redis.Connect(context.Background(), redis.Config{
			ConnectionURL: url,
			RetryAttempts: 2,
			RetryInterval: 10 * time.Millisecond,
		})
		require.NoError(t, err)
		defer client.Close()

		assert.NoError(t, redis.Healthcheck(client)(context.Background()))
	})
}
