package sqlite

import (
	"context"
	"database/sql"
	"errors"
)

// Healthcheck returns a closure that validates database availability for health endpoints.
func Healthcheck(db *sql.DB) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
