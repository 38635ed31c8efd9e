package sqlite_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailscheduler/pkg/sqlite"
)

func testConfig(t *testing.T) sqlite.Config {
	t.Helper()
	return sqlite.Config{
		Path:            filepath.Join(t.TempDir(), "nested", "dir", "test.db"),
		BusyTimeout:     time.Second,
		JournalMode:     "WAL",
		MaxOpenConns:    1,
		MigrationsTable: "schema_migrations",
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("empty path", func(t *testing.T) {
		t.Parallel()

		db, err := sqlite.Open(context.Background(), sqlite.Config{})
		assert.Nil(t, db)
		assert.ErrorIs(t, err, sqlite.ErrEmptyPath)
	})

	t.Run("creates directory and applies journal mode", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		db, err := sqlite.Open(context.Background(), cfg)
		require.NoError(t, err)
		defer db.Close()

		assert.FileExists(t, cfg.Path)

		var mode string
		require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
		assert.Equal(t, "wal", mode)

		assert.NoError(t, sqlite.Healthcheck(db)(context.Background()))
	})

	t.Run("healthcheck fails after close", func(t *testing.T) {
		t.Parallel()

		db, err := sqlite.Open(context.Background(), testConfig(t))
		require.NoError(t, err)
		require.NoError(t, db.Close())

		assert.ErrorIs(t, sqlite.Healthcheck(db)(context.Background()), sqlite.ErrHealthcheckFailed)
	})
}

func TestMigrate(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/00001_fixture.sql": {Data: []byte(`-- +goose Up
CREATE TABLE fixture (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL UNIQUE);
-- +goose Down
DROP TABLE fixture;
`)},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("nil filesystem", func(t *testing.T) {
		t.Parallel()

		err := sqlite.Migrate(context.Background(), nil, nil, ".", sqlite.Config{}, log)
		assert.ErrorIs(t, err, sqlite.ErrMigrationsNotProvided)
	})

	t.Run("applies once and classifies constraint errors", func(t *testing.T) {
		cfg := testConfig(t)
		ctx := context.Background()

		db, err := sqlite.Open(ctx, cfg)
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, sqlite.Migrate(ctx, db, fsys, "migrations", cfg, log))
		require.NoError(t, sqlite.Migrate(ctx, db, fsys, "migrations", cfg, log))

		_, err = db.ExecContext(ctx, "INSERT INTO fixture (name) VALUES ('a')")
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, "INSERT INTO fixture (name) VALUES ('a')")
		require.Error(t, err)
		assert.True(t, sqlite.IsConstraintError(err))
		assert.False(t, sqlite.IsBusyError(err))
	})
}

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, sqlite.IsBusyError(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.True(t, sqlite.IsBusyError(sqlite3.Error{Code: sqlite3.ErrLocked}))
	assert.False(t, sqlite.IsBusyError(sqlite3.Error{Code: sqlite3.ErrConstraint}))
	assert.False(t, sqlite.IsBusyError(nil))
	assert.False(t, sqlite.IsConstraintError(nil))
}
