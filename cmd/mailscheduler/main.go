package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/mailscheduler/pkg/email"
	"github.com/dmitrymomot/mailscheduler/pkg/environment"
	"github.com/dmitrymomot/mailscheduler/pkg/httpserver"
	"github.com/dmitrymomot/mailscheduler/pkg/logger"
	"github.com/dmitrymomot/mailscheduler/pkg/queue"
	"github.com/dmitrymomot/mailscheduler/pkg/redis"
	"github.com/dmitrymomot/mailscheduler/pkg/requestid"
	"github.com/dmitrymomot/mailscheduler/svc/scheduler"
)

func main() {
	envFile := flag.String("env-file", "", "path to a .env file overriding the environment")
	flag.Parse()

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, envFiles); err != nil {
		slog.Error("mailscheduler stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, envFiles []string) error {
	s, err := loadSettings(envFiles...)
	if err != nil {
		return err
	}

	log, err := logger.NewFromConfig(s.Log, s.App.Env,
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	if err != nil {
		return err
	}
	logger.SetAsDefault(log)

	log.InfoContext(ctx, "starting mailscheduler",
		slog.String("db_driver", s.App.DBDriver),
		slog.String("email_driver", string(s.Email.Driver)),
		slog.String("queue", s.Queue.Name),
	)

	// the broker is required; there is no degraded mode
	rdb, err := redis.Connect(ctx, s.Redis)
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error("close redis", logger.Error(err))
		}
	}()

	opts := []scheduler.Option{
		scheduler.WithLogger(log),
		scheduler.WithEnqueueOptions(queue.WithQueue(s.Queue.Name)),
		scheduler.WithReconcileGrace(s.App.ReconcileGrace),
	}

	store, err := openStore(ctx, s, log, opts...)
	if err != nil {
		return err
	}
	defer store.close()

	tasks, err := queue.NewRedisStorage(rdb, queue.WithKeyPrefix(s.Queue.KeyPrefix))
	if err != nil {
		return err
	}
	enq, err := queue.NewEnqueuer(tasks,
		queue.WithDefaultQueue(s.Queue.Name),
		queue.WithDefaultRetryPolicy(s.Queue.RetryPolicy()),
	)
	if err != nil {
		return err
	}

	sender, err := email.NewFromConfig(s.Email)
	if err != nil {
		return fmt.Errorf("email sender: %w", err)
	}

	worker, err := queue.NewWorker(tasks,
		queue.WithQueues(s.Queue.Name, s.Queue.MaintenanceName),
		queue.WithPullInterval(s.Queue.PollInterval),
		queue.WithLockTimeout(s.Queue.LockTimeout),
		queue.WithTaskTimeout(s.Queue.TaskTimeout),
		queue.WithMaxConcurrentTasks(s.Queue.MaxConcurrentTasks),
		queue.WithWorkerLogger(log.With(logger.Component("queue"))),
	)
	if err != nil {
		return err
	}
	if err := worker.RegisterHandler(scheduler.NewWorker(store, sender, opts...).Handler()); err != nil {
		return err
	}

	recovery := scheduler.NewRecovery(store, enq, opts...)
	reconcile := recovery.Handler()
	if err := worker.RegisterHandler(reconcile); err != nil {
		return err
	}

	periodic, err := queue.NewScheduler(tasks,
		queue.WithCheckInterval(s.Queue.SchedulerCheckInterval),
		queue.WithSchedulerLogger(log.With(logger.Component("scheduler"))),
	)
	if err != nil {
		return err
	}
	if err := periodic.AddTask(reconcile.Name(), queue.EveryInterval(s.App.ReconcileInterval),
		queue.WithTaskQueue(s.Queue.MaintenanceName)); err != nil {
		return err
	}

	// recovery runs before any new request can schedule work
	if _, err := recovery.Run(ctx); err != nil {
		log.ErrorContext(ctx, "startup recovery failed", logger.Error(err))
	}

	svc := scheduler.NewService(store, enq, opts...)
	router := newRouter(s, log, svc, map[string]httpserver.Check{
		"redis": redis.Healthcheck(rdb),
		"store": store.check,
	})

	srv := httpserver.NewFromConfig(s.HTTP, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(worker.Run(ctx))
	g.Go(periodic.Run(ctx))
	g.Go(func() error { return srv.Run(ctx, router) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("mailscheduler stopped")
	return nil
}

func newRouter(s settings, log *slog.Logger, svc *scheduler.Service, checks map[string]httpserver.Check) http.Handler {
	r := chi.NewRouter()
	r.Use(
		cors.Handler(cors.Options{
			AllowedOrigins: s.App.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", requestid.Header},
			ExposedHeaders: []string{requestid.Header},
			MaxAge:         300,
		}),
		requestid.Middleware(),
		environment.Middleware(s.App.Env),
		chimw.RealIP,
		chimw.Recoverer,
	)

	r.Get("/health/live", httpserver.HealthCheckHandler(log, nil))
	r.Get("/health", httpserver.HealthCheckHandler(log, checks))
	r.Mount(s.App.APIPath, scheduler.NewHTTPHandler(svc, scheduler.WithLogger(log)).Routes())

	return r
}
