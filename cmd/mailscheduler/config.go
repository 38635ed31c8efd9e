package main

import (
	"fmt"
	"time"

	"github.com/dmitrymomot/mailscheduler/pkg/config"
	"github.com/dmitrymomot/mailscheduler/pkg/email"
	"github.com/dmitrymomot/mailscheduler/pkg/environment"
	"github.com/dmitrymomot/mailscheduler/pkg/httpserver"
	"github.com/dmitrymomot/mailscheduler/pkg/logger"
	"github.com/dmitrymomot/mailscheduler/pkg/pg"
	"github.com/dmitrymomot/mailscheduler/pkg/queue"
	"github.com/dmitrymomot/mailscheduler/pkg/redis"
	"github.com/dmitrymomot/mailscheduler/pkg/sqlite"
)

// Database drivers selectable with DB_DRIVER.
const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
	driverMemory   = "memory"
)

type appConfig struct {
	Env      environment.Environment `env:"ENV" envDefault:"development"`
	DBDriver string                  `env:"DB_DRIVER" envDefault:"sqlite"`
	APIPath  string                  `env:"API_PATH" envDefault:"/api/emails"`

	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1m"`
	ReconcileGrace    time.Duration `env:"RECONCILE_GRACE" envDefault:"1m"`

	// Browser origins allowed to call the API, "*" for any.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

type settings struct {
	App    appConfig
	Log    logger.Config
	HTTP   httpserver.Config
	Redis  redis.Config
	Queue  queue.Config
	Email  email.Config
	SQLite sqlite.Config
	PG     pg.Config
}

// loadSettings reads the env files, if any, and then every config section.
// Without files ./.env is used when present.
func loadSettings(envFiles ...string) (settings, error) {
	var s settings

	if len(envFiles) > 0 {
		if err := config.LoadEnv(envFiles...); err != nil {
			return s, err
		}
	}

	for _, load := range []func() error{
		func() error { return config.Load(&s.App) },
		func() error { return config.Load(&s.Log) },
		func() error { return config.Load(&s.HTTP) },
		func() error { return config.Load(&s.Redis) },
		func() error { return config.Load(&s.Queue) },
		func() error { return config.Load(&s.Email) },
		func() error { return config.Load(&s.SQLite) },
		func() error { return config.Load(&s.PG) },
	} {
		if err := load(); err != nil {
			return s, err
		}
	}

	switch s.App.DBDriver {
	case driverSQLite, driverPostgres, driverMemory:
	default:
		return s, fmt.Errorf("unsupported DB_DRIVER %q", s.App.DBDriver)
	}
	return s, nil
}
