package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/mailscheduler/pkg/httpserver"
	"github.com/dmitrymomot/mailscheduler/pkg/logger"
	"github.com/dmitrymomot/mailscheduler/pkg/pg"
	"github.com/dmitrymomot/mailscheduler/pkg/sqlite"
	"github.com/dmitrymomot/mailscheduler/svc/scheduler"
)

// recordStore is an opened RecordStore with its health check and cleanup.
type recordStore struct {
	scheduler.RecordStore
	check httpserver.Check
	close func()
}

// openStore connects the database selected by DB_DRIVER and applies migrations.
func openStore(ctx context.Context, s settings, log *slog.Logger, opts ...scheduler.Option) (*recordStore, error) {
	switch s.App.DBDriver {
	case driverPostgres:
		pool, err := pg.Connect(ctx, s.PG)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.Migrate(ctx, pool, scheduler.Migrations, scheduler.PostgresMigrationsDir, s.PG, log); err != nil {
			pool.Close()
			return nil, err
		}
		return &recordStore{
			RecordStore: scheduler.NewPostgresStore(pool, opts...),
			check:       pg.Healthcheck(pool),
			close:       pool.Close,
		}, nil

	case driverSQLite:
		db, err := sqlite.Open(ctx, s.SQLite)
		if err != nil {
			return nil, err
		}
		if err := sqlite.Migrate(ctx, db, scheduler.Migrations, scheduler.SQLiteMigrationsDir, s.SQLite, log); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &recordStore{
			RecordStore: scheduler.NewSQLiteStore(db, opts...),
			check:       sqlite.Healthcheck(db),
			close: func() {
				if err := db.Close(); err != nil {
					log.Error("close sqlite", logger.Error(err))
				}
			},
		}, nil

	default:
		log.WarnContext(ctx, "using in-memory record store, records do not survive restarts")
		return &recordStore{
			RecordStore: scheduler.NewMemoryStore(opts...),
			check:       func(context.Context) error { return nil },
			close:       func() {},
		}, nil
	}
}
