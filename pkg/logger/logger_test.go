package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailscheduler/pkg/environment"
	"github.com/dmitrymomot/mailscheduler/pkg/logger"
)

type ctxKey struct{}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json with static attrs", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf), logger.WithAttr(slog.String("app", "test")))
		log.Info("hello", logger.RecordID(7))

		out := decode(t, &buf)
		assert.Equal(t, "hello", out["msg"])
		assert.Equal(t, "test", out["app"])
		assert.EqualValues(t, 7, out["record_id"])
	})

	t.Run("text format and level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithFormat(logger.FormatText),
			logger.WithLevel(slog.LevelWarn),
		)
		log.Info("hidden")
		log.Warn("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "msg=shown")
	})

	t.Run("invalid format panics", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() { logger.New(logger.WithFormat("xml")) })
	})

	t.Run("context extractors", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithContextExtractors(nil, func(ctx context.Context) (slog.Attr, bool) {
				v, ok := ctx.Value(ctxKey{}).(string)
				return slog.String("trace", v), ok
			}),
		)

		log.InfoContext(context.WithValue(context.Background(), ctxKey{}, "t-1"), "with")
		assert.Equal(t, "t-1", decode(t, &buf)["trace"])

		buf.Reset()
		log.With("k", "v").WithGroup("g").InfoContext(context.Background(), "without", "x", 1)
		assert.NotContains(t, buf.String(), "trace")
		assert.Contains(t, buf.String(), `"g":{"x":1}`)
	})
}

func TestWithEnvironment(t *testing.T) {
	t.Parallel()

	t.Run("development is text at debug", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf), logger.WithEnvironment(environment.Development, "svc"))
		log.Debug("dbg")

		assert.Contains(t, buf.String(), "msg=dbg")
		assert.Contains(t, buf.String(), "service=svc")
		assert.Contains(t, buf.String(), "env=development")
	})

	t.Run("production is json at info", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf), logger.WithEnvironment(environment.Production, "svc"))
		log.Debug("dbg")
		assert.Empty(t, buf.String())

		log.Info("info")
		out := decode(t, &buf)
		assert.Equal(t, "production", out["env"])
	})
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("overrides preset", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log, err := logger.NewFromConfig(
			logger.Config{Level: "error", Format: logger.FormatJSON, Service: "svc"},
			environment.Development,
			logger.WithOutput(&buf),
		)
		require.NoError(t, err)

		log.Warn("hidden")
		assert.Empty(t, buf.String())
		log.Error("boom")
		assert.Equal(t, "svc", decode(t, &buf)["service"])
	})

	t.Run("invalid level", func(t *testing.T) {
		t.Parallel()

		_, err := logger.NewFromConfig(logger.Config{Level: "loud"}, environment.Production)
		assert.Error(t, err)
	})

	t.Run("invalid format", func(t *testing.T) {
		t.Parallel()

		_, err := logger.NewFromConfig(logger.Config{Format: "xml"}, environment.Production)
		assert.Error(t, err)
	})
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Attr{}, logger.Error(nil))
	assert.Equal(t, "error", logger.Error(errors.New("x")).Key)

	assert.Equal(t, slog.Attr{}, logger.Errors(nil, nil))
	errs := logger.Errors(nil, errors.New("a"), errors.New("b"))
	assert.Equal(t, "errors", errs.Key)
	assert.Len(t, errs.Value.Group(), 2)

	assert.Equal(t, slog.Attr{}, logger.MessageID(""))
	assert.Equal(t, slog.Attr{}, logger.RequestID(""))
	assert.Equal(t, "m-1", logger.MessageID("m-1").Value.String())

	attempt := logger.Attempt(2, 4)
	assert.Equal(t, "attempt", attempt.Key)
	assert.Len(t, attempt.Value.Group(), 2)

	assert.Equal(t, time.Second, logger.Duration(time.Second).Value.Duration())
	assert.Equal(t, "task_id", logger.TaskID("t").Key)
	assert.Equal(t, "task", logger.TaskName("n").Key)
	assert.Equal(t, "recipient", logger.Recipient("a@b.co").Key)
	assert.Equal(t, "status", logger.Status("sent").Key)
	assert.True(t, strings.HasPrefix(logger.Component("worker").Value.String(), "worker"))
}
