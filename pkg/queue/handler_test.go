package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailscheduler/pkg/queue"
)

type handlerTestPayload struct {
	Message string `json:"message"`
	Value   int    `json:"value"`
}

type nestedPayload struct {
	Inner handlerTestPayload
}

func TestNewTaskHandler(t *testing.T) {
	t.Parallel()

	t.Run("name is the qualified payload type", func(t *testing.T) {
		t.Parallel()

		handler := queue.NewTaskHandler(func(ctx context.Context, attempt queue.Attempt, payload handlerTestPayload) error {
			return nil
		})
		assert.Equal(t, "queue_test.handlerTestPayload", handler.Name())

		nested := queue.NewTaskHandler(func(ctx context.Context, attempt queue.Attempt, payload *nestedPayload) error {
			return nil
		})
		assert.Equal(t, "queue_test.nestedPayload", nested.Name())
	})

	t.Run("types from other packages", func(t *testing.T) {
		t.Parallel()

		h1 := queue.NewTaskHandler(func(ctx context.Context, attempt queue.Attempt, payload time.Time) error {
			return nil
		})
		h2 := queue.NewTaskHandler(func(ctx context.Context, attempt queue.Attempt, payload uuid.UUID) error {
			return nil
		})
		assert.Equal(t, "time.Time", h1.Name())
		assert.Equal(t, "uuid.UUID", h2.Name())
	})

	t.Run("decodes payload and passes attempt", func(t *testing.T) {
		t.Parallel()

		var (
			got        handlerTestPayload
			gotAttempt queue.Attempt
		)
		handler := queue.NewTaskHandler(func(ctx context.Context, attempt queue.Attempt, payload handlerTestPayload) error {
			got = payload
			gotAttempt = attempt
			return nil
		})

		raw, err := json.Marshal(handlerTestPayload{Message: "hi", Value: 42})
		require.NoError(t, err)

		attempt := queue.Attempt{TaskID: uuid.New(), Number: 2, MaxAttempts: 4}
		require.NoError(t, handler.Handle(context.Background(), attempt, raw))

		assert.Equal(t, handlerTestPayload{Message: "hi", Value: 42}, got)
		assert.Equal(t, attempt, gotAttempt)
	})

	t.Run("returns handler error unchanged", func(t *testing.T) {
		t.Parallel()

		expectedErr := errors.New("processing failed")
		handler := queue.NewTaskHandler(func(ctx context.Context, attempt queue.Attempt, payload handlerTestPayload) error {
			return expectedErr
		})

		err := handler.Handle(context.Background(), queue.Attempt{}, json.RawMessage(`{}`))
		assert.ErrorIs(t, err, expectedErr)
	})

	t.Run("malformed payload", func(t *testing.T) {
		t.Parallel()

		called := false
		handler := queue.NewTaskHandler(func(ctx context.Context, attempt queue.Attempt, payload handlerTestPayload) error {
			called = true
			return nil
		})

		err := handler.Handle(context.Background(), queue.Attempt{}, json.RawMessage(`{"value":"nope"`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode queue_test.handlerTestPayload payload")
		assert.False(t, called)
	})
}

func TestRetryPolicy(t *testing.T) {
	t.Parallel()

	p := queue.DefaultRetryPolicy()
	assert.Equal(t, 3, p.MaxRetries)
	assert.Equal(t, 4, p.MaxAttempts())

	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(3))

	assert.Equal(t, 1, queue.RetryPolicy{MaxRetries: -1}.MaxAttempts())
	assert.Equal(t, time.Duration(0), queue.RetryPolicy{MaxRetries: 3}.Delay(2))

	huge := queue.RetryPolicy{MaxRetries: 100, Backoff: time.Millisecond}
	assert.Equal(t, huge.Delay(21), huge.Delay(60))
}

func TestAttemptFinal(t *testing.T) {
	t.Parallel()

	assert.False(t, queue.Attempt{Number: 1, MaxAttempts: 4}.Final())
	assert.False(t, queue.Attempt{Number: 3, MaxAttempts: 4}.Final())
	assert.True(t, queue.Attempt{Number: 4, MaxAttempts: 4}.Final())
	assert.True(t, queue.Attempt{Number: 1, MaxAttempts: 1}.Final())
}
