// Package redis connects the scheduler to its queue broker.
//
// The package wraps the go-redis client and adds:
//
//   - Connect, which pings the broker a bounded number of times with a fixed
//     pause between attempts and fails with ErrRedisNotReady afterwards.
//   - Healthcheck, a closure suitable for liveness and readiness checks.
//
// Configuration is described by the Config struct whose fields can be
// populated from environment variables via github.com/caarlos0/env.
//
// # Usage
//
//	cfg := redis.Config{
//	    ConnectionURL:  "redis://localhost:6379/0",
//	    RetryAttempts:  10,
//	    RetryInterval:  2 * time.Second,
//	    ConnectTimeout: time.Minute,
//	}
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    // the scheduler cannot run without a broker: terminate
//	}
//	defer client.Close()
//
// # Errors
//
// Sentinel errors are joined with the underlying go-redis error using
// errors.Join, so errors.Is(err, redis.ErrRedisNotReady) works on the result.
package redis
