// Package queue provides a durable delayed task queue with bounded retries.
//
// The package is organised around two components:
//
//   - Enqueuer: adds a task that becomes eligible after an optional delay,
//     and removes a pending task by its handle
//   - Worker: claims due tasks and dispatches them to a registered Handler
//
// Components interact only through the EnqueuerRepository and WorkerRepository
// interfaces. RedisStorage is the production backend; MemoryStorage serves tests
// and local development.
//
// # Task lifecycle
//
// A task starts pending with a due time. A worker claims it (the attempt counter
// is incremented atomically with the claim) and runs the handler. On success the
// task is completed and, by default, removed. On failure it is rescheduled after
// RetryPolicy.Delay for the attempt, doubling each time, until the policy is
// exhausted; the final failure parks the task in the dead letter set. A claim
// whose lock expires (crashed worker) is returned to the due set.
//
// # Usage
//
//	type Reminder struct {
//	    ID int64 `json:"id"`
//	}
//
//	storage, err := queue.NewRedisStorage(client, queue.WithKeyPrefix("app"))
//	if err != nil {
//	    return err
//	}
//
//	enq, err := queue.NewEnqueuer(storage)
//	if err != nil {
//	    return err
//	}
//	handle, err := enq.Enqueue(ctx, Reminder{ID: 42}, queue.WithDelay(time.Hour))
//
//	worker, err := queue.NewWorker(storage, queue.WithMaxConcurrentTasks(10))
//	if err != nil {
//	    return err
//	}
//	_ = worker.RegisterHandler(queue.NewTaskHandler(
//	    func(ctx context.Context, attempt queue.Attempt, r Reminder) error {
//	        return deliver(ctx, r.ID)
//	    },
//	))
//	g.Go(worker.Run(ctx))
//
// Handlers receive the Attempt so they can tell the last attempt apart and
// record a permanent failure before the task is parked.
package queue
