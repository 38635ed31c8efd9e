package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/mailscheduler/pkg/logger"
	"github.com/dmitrymomot/mailscheduler/pkg/queue"
)

// RecoveryReport summarizes one recovery run.
type RecoveryReport struct {
	Scanned  int // scheduled records found
	Enqueued int // records given a new task
	Overdue  int // enqueued records whose time passed while down
	Skipped  int // records whose previous task is running right now
	Failed   int // records left for the next run
}

// Recovery rebuilds queue tasks from scheduled records after a restart.
type Recovery struct {
	store      RecordStore
	queue      Enqueuer
	log        *slog.Logger
	now        func() time.Time
	enqueueOps []queue.EnqueueOption
	grace      time.Duration
}

// NewRecovery wires a store and a queue. Pass the same WithEnqueueOptions as
// the Service so recovered tasks land on the same queue.
func NewRecovery(store RecordStore, enq Enqueuer, opts ...Option) *Recovery {
	o := newOptions(opts)
	return &Recovery{
		store:      store,
		queue:      enq,
		log:        o.logger.With(logger.Component("recovery")),
		now:        o.now,
		enqueueOps: o.enqueueOps,
		grace:      o.grace,
	}
}

// Run re-enqueues every scheduled record. Each record's previous task is
// removed first so at most one task exists per record; if that task is being
// executed the record is left alone. Per-record failures are logged and
// counted, only failing to list records returns an error.
func (r *Recovery) Run(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport

	records, err := r.store.List(ctx, StatusScheduled)
	if err != nil {
		return report, fmt.Errorf("list scheduled records: %w", err)
	}
	report.Scanned = len(records)

	for _, rec := range records {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		log := r.log.With(logger.RecordID(rec.ID))

		if rec.QueueHandle != nil {
			err := r.queue.Remove(ctx, *rec.QueueHandle)
			switch {
			case err == nil, errors.Is(err, queue.ErrTaskNotFound), errors.Is(err, queue.ErrInvalidHandle):
			case errors.Is(err, queue.ErrTaskActive):
				log.InfoContext(ctx, "previous task is running, skipping", logger.TaskID(*rec.QueueHandle))
				report.Skipped++
				continue
			default:
				log.ErrorContext(ctx, "remove previous task", logger.TaskID(*rec.QueueHandle), logger.Error(err))
				report.Failed++
				continue
			}
		}

		r.reenqueue(ctx, log, rec, &report)
	}

	r.logReport(ctx, "recovery finished", report)
	return report, nil
}

// ReconcilePayload is the periodic reconcile task body.
type ReconcilePayload struct{}

// Handler returns the queue handler that runs Reconcile. Its Name is the task
// name to register with queue.Scheduler.
func (r *Recovery) Handler() queue.Handler {
	return queue.NewTaskHandler(func(ctx context.Context, _ queue.Attempt, _ ReconcilePayload) error {
		_, err := r.Reconcile(ctx)
		return err
	})
}

// Reconcile re-enqueues scheduled records that lost their task while the
// process kept running. Unlike Run it leaves live tasks alone, so it is safe
// to call while workers are busy. A record qualifies when
//   - it has no queue handle and is older than the grace period, or
//   - its task was moved to the dead letter set without settling the record.
//
// A handle that no longer resolves is skipped: the task either completed or
// the broker lost it, and only a restart recovery can tell those apart.
func (r *Recovery) Reconcile(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport

	records, err := r.store.List(ctx, StatusScheduled)
	if err != nil {
		return report, fmt.Errorf("list scheduled records: %w", err)
	}
	report.Scanned = len(records)

	for _, rec := range records {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		log := r.log.With(logger.RecordID(rec.ID))

		if rec.QueueHandle == nil {
			if r.now().Sub(rec.CreatedAt) < r.grace {
				report.Skipped++
				continue
			}
			r.reenqueue(ctx, log, rec, &report)
			continue
		}

		task, err := r.queue.Lookup(ctx, *rec.QueueHandle)
		switch {
		case errors.Is(err, queue.ErrTaskNotFound), errors.Is(err, queue.ErrInvalidHandle):
			report.Skipped++
		case err != nil:
			log.ErrorContext(ctx, "look up task", logger.TaskID(*rec.QueueHandle), logger.Error(err))
			report.Failed++
		case task.Status == queue.TaskStatusFailed:
			log.WarnContext(ctx, "task dead-lettered, re-enqueueing", logger.TaskID(*rec.QueueHandle))
			r.reenqueue(ctx, log, rec, &report)
		default:
			report.Skipped++
		}
	}

	if report.Enqueued > 0 || report.Failed > 0 {
		r.logReport(ctx, "reconcile finished", report)
	}
	return report, nil
}

func (r *Recovery) reenqueue(ctx context.Context, log *slog.Logger, rec JobRecord, report *RecoveryReport) {
	now := r.now()
	handle, err := enqueueDelivery(ctx, r.queue, rec, now, r.enqueueOps)
	if err != nil {
		log.ErrorContext(ctx, "re-enqueue record", logger.Error(err))
		report.Failed++
		return
	}

	if err := bindHandle(ctx, r.store, r.queue, rec.ID, handle); err != nil {
		log.ErrorContext(ctx, "store queue handle", logger.TaskID(handle), logger.Error(err))
		report.Failed++
		return
	}

	report.Enqueued++
	if !rec.ScheduledTime.After(now) {
		report.Overdue++
	}
}

func (r *Recovery) logReport(ctx context.Context, msg string, report RecoveryReport) {
	r.log.InfoContext(ctx, msg,
		slog.Int("scanned", report.Scanned),
		slog.Int("enqueued", report.Enqueued),
		slog.Int("overdue", report.Overdue),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
	)
}
