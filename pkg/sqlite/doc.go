// Package sqlite opens the embedded SQLite backend of the record store with
// github.com/mattn/go-sqlite3 and applies goose migrations to it.
//
//	db, err := sqlite.Open(ctx, sqlite.Config{Path: "./data/emails.db", BusyTimeout: 5 * time.Second})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := sqlite.Migrate(ctx, db, migrations.FS, "sqlite", cfg, logger); err != nil {
//	    return err
//	}
//
// The pool is capped at one connection by default because SQLite serializes
// writers; readers in WAL mode are not blocked by it.
package sqlite
