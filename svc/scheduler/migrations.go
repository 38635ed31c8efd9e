package scheduler

import "embed"

// Migrations holds the goose migrations for every supported database.
//
//go:embed migrations
var Migrations embed.FS

// Migration directories inside Migrations.
const (
	PostgresMigrationsDir = "migrations/postgres"
	SQLiteMigrationsDir   = "migrations/sqlite"
)
