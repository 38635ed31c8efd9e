package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

const memoryPath = ":memory:"

// Open creates the database directory if needed, opens the file with the
// go-sqlite3 driver and applies connection pragmas.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, ErrEmptyPath
	}

	if cfg.Path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, errors.Join(ErrFailedToOpenDB, fmt.Errorf("create db directory: %w", err))
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on", cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Join(ErrFailedToOpenDB, err)
	}
	db.SetMaxOpenConns(max(cfg.MaxOpenConns, 1))

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Join(ErrFailedToOpenDB, err)
	}

	if cfg.JournalMode != "" && cfg.Path != memoryPath {
		q := fmt.Sprintf("PRAGMA journal_mode=%s;", cfg.JournalMode)
		if _, err := db.ExecContext(ctx, q); err != nil {
			_ = db.Close()
			return nil, errors.Join(ErrFailedToOpenDB, fmt.Errorf("set pragma %q: %w", q, err))
		}
	}

	return db, nil
}
