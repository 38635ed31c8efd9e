// Package pg bootstraps the PostgreSQL backend of the record store using the
// pgx/v5 driver.
//
//   - Config is populated from PG_* environment variables via github.com/caarlos0/env.
//   - Connect opens a *pgxpool.Pool, retrying with linear back-off until the
//     database answers a ping.
//   - Migrate runs goose migrations from an embedded filesystem against the pool.
//   - Healthcheck returns a check for the /health endpoint.
//
// # Usage
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, migrations.FS, "postgres", cfg, slog.Default()); err != nil {
//	    return err
//	}
//
// IsNotFoundError and IsDuplicateKeyError classify errors returned by pgx.
package pg
