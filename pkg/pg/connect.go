package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect establishes a PostgreSQL connection pool with retry logic.
// Attempt n waits n*RetryInterval before the next one, so simultaneous restarts
// of several services spread out. Cancelling ctx aborts the wait.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.ConnectionString == "" {
		return nil, ErrEmptyConnectionString
	}

	connConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseDBConfig, err)
	}
	// zero values keep the pgxpool defaults
	if cfg.MaxOpenConns > 0 {
		connConfig.MaxConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		connConfig.MinConns = min(cfg.MaxIdleConns, connConfig.MaxConns)
	}
	if cfg.HealthCheckPeriod > 0 {
		connConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}
	if cfg.MaxConnIdleTime > 0 {
		connConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.MaxConnLifetime > 0 {
		connConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}

	attempts := max(cfg.RetryAttempts, 1)

	var lastErr error
	for i := range attempts {
		pool, err := pgxpool.NewWithConfig(ctx, connConfig)
		if err == nil {
			// Ping catches authentication and permission issues the pool defers.
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lastErr = fmt.Errorf("attempt %d/%d: %w", i+1, attempts, err)

		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(time.Duration(i+1) * cfg.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Join(ErrFailedToOpenDBConnection, lastErr, ctx.Err())
		case <-timer.C:
		}
	}

	return nil, errors.Join(ErrFailedToOpenDBConnection, lastErr)
}
