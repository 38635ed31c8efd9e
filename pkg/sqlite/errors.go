package sqlite

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrEmptyPath               = errors.New("empty sqlite database path, use DB_PATH env var")
	ErrFailedToOpenDB          = errors.New("failed to open sqlite database")
	ErrFailedToApplyMigrations = errors.New("failed to apply migrations")
	ErrMigrationsNotProvided   = errors.New("migrations filesystem not provided")
	ErrHealthcheckFailed       = errors.New("healthcheck failed, database is not available")
)

// IsBusyError reports SQLITE_BUSY and SQLITE_LOCKED, which clear once the
// competing writer commits.
func IsBusyError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

// IsConstraintError reports constraint violations (UNIQUE, CHECK, NOT NULL).
func IsConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
