package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect establishes a connection to the broker using the provided configuration.
// It pings the server up to cfg.RetryAttempts times and sleeps cfg.RetryInterval
// between failed attempts. The interval is fixed, not exponential.
//
// Returns:
//   - *redis.Client: a connected client if any attempt succeeds
//   - error: ErrFailedToParseRedisConnString if the URL is invalid,
//     ErrRedisNotReady (joined with the last ping error) once all attempts fail
//     or the context ends.
//
// The client does not get any extra reconnect handling on top of what go-redis
// does internally; errors after a successful connect are returned to callers.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.ConnectionURL == "" {
		return nil, ErrEmptyConnectionURL
	}
	if cfg.RetryAttempts <= 0 {
		return nil, ErrInvalidRetryAttempts
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	opts, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseRedisConnString, err)
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.RetryAttempts; attempt++ {
		client := redis.NewClient(opts)

		pingErr := client.Ping(ctx).Err()
		if pingErr == nil {
			return client, nil
		}
		_ = client.Close()
		lastErr = fmt.Errorf("attempt %d/%d: %w", attempt, cfg.RetryAttempts, pingErr)

		if attempt == cfg.RetryAttempts {
			break
		}

		timer := time.NewTimer(cfg.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Join(ErrRedisNotReady, lastErr, ctx.Err())
		case <-timer.C:
		}
	}

	return nil, errors.Join(ErrRedisNotReady, lastErr)
}
