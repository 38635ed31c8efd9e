// Package httpserver runs an http.Handler with configured timeouts and
// context driven graceful shutdown.
//
// Run blocks until its context is cancelled, then calls http.Server.Shutdown
// bounded by the shutdown timeout. It does not install signal handlers; the
// caller owns the process lifecycle, typically through signal.NotifyContext and
// an errgroup:
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// HealthCheckHandler serves liveness and readiness checks from named checks
// such as the redis and database healthchecks.
//
// Start failures are joined with ErrStart and shutdown failures with
// ErrShutdown so they can be told apart with errors.Is.
package httpserver
