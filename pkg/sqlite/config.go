package sqlite

import "time"

// Config describes the embedded SQLite database.
type Config struct {
	Path            string        `env:"DB_PATH" envDefault:"./data/emails.db"`                  // Path is the database file; its directory is created on Open.
	BusyTimeout     time.Duration `env:"SQLITE_BUSY_TIMEOUT" envDefault:"5s"`                    // BusyTimeout is how long a writer waits for a lock before SQLITE_BUSY.
	JournalMode     string        `env:"SQLITE_JOURNAL_MODE" envDefault:"WAL"`                   // JournalMode is applied with PRAGMA journal_mode.
	MaxOpenConns    int           `env:"SQLITE_MAX_OPEN_CONNS" envDefault:"1"`                   // MaxOpenConns caps the pool; SQLite allows a single writer.
	MigrationsTable string        `env:"SQLITE_MIGRATIONS_TABLE" envDefault:"schema_migrations"` // MigrationsTable is the name of the goose version table.
}
