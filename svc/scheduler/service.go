package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dmitrymomot/mailscheduler/pkg/logger"
	"github.com/dmitrymomot/mailscheduler/pkg/queue"
)

const removeTimeout = 5 * time.Second

// Enqueuer is the part of *queue.Enqueuer the scheduler needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) (string, error)
	Remove(ctx context.Context, handle string) error
	Lookup(ctx context.Context, handle string) (*queue.Task, error)
}

// DeliveryPayload is the queue task body for one scheduled email.
type DeliveryPayload struct {
	ID        int64  `json:"id"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// Service is the scheduling API: it stores records and hands them to the queue.
type Service struct {
	store      RecordStore
	queue      Enqueuer
	log        *slog.Logger
	now        func() time.Time
	enqueueOps []queue.EnqueueOption
}

// NewService wires a store and a queue.
func NewService(store RecordStore, enq Enqueuer, opts ...Option) *Service {
	o := newOptions(opts)
	return &Service{
		store:      store,
		queue:      enq,
		log:        o.logger,
		now:        o.now,
		enqueueOps: o.enqueueOps,
	}
}

// Schedule validates and stores the record, then enqueues its delivery to run
// at ScheduledTime.
//
// When enqueueing fails, or the new handle cannot be stored, the stored record
// is returned together with an ErrEnqueue error. It stays scheduled without a
// live task and the next recovery run picks it up.
func (s *Service) Schedule(ctx context.Context, in NewRecord) (JobRecord, error) {
	if err := in.Validate(s.now()); err != nil {
		return JobRecord{}, err
	}

	rec, err := s.store.Insert(ctx, in)
	if err != nil {
		return JobRecord{}, err
	}

	handle, err := enqueueDelivery(ctx, s.queue, rec, s.now(), s.enqueueOps)
	if err != nil {
		s.log.ErrorContext(ctx, "enqueue scheduled email",
			logger.RecordID(rec.ID),
			logger.Error(err),
		)
		return rec, fmt.Errorf("%w: record %d: %w", ErrEnqueue, rec.ID, err)
	}

	if err := bindHandle(ctx, s.store, s.queue, rec.ID, handle); err != nil {
		s.log.ErrorContext(ctx, "store queue handle",
			logger.RecordID(rec.ID),
			logger.TaskID(handle),
			logger.Error(err),
		)
		return rec, fmt.Errorf("%w: record %d: %w", ErrEnqueue, rec.ID, err)
	}
	rec.QueueHandle = &handle

	s.log.InfoContext(ctx, "email scheduled",
		logger.RecordID(rec.ID),
		logger.TaskID(handle),
		slog.Time("scheduled_time", rec.ScheduledTime),
	)
	return rec, nil
}

// Status returns the record with the given id or ErrNotFound.
func (s *Service) Status(ctx context.Context, id int64) (JobRecord, error) {
	return s.store.Get(ctx, id)
}

// List returns records with status, or all records when status is empty.
func (s *Service) List(ctx context.Context, status Status) ([]JobRecord, error) {
	return s.store.List(ctx, status)
}

// Stats counts records per status.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx)
}

// enqueueDelivery enqueues rec to run at its scheduled time. Records that are
// already due run immediately.
func enqueueDelivery(ctx context.Context, enq Enqueuer, rec JobRecord, now time.Time, extra []queue.EnqueueOption) (string, error) {
	delay := max(rec.ScheduledTime.Sub(now), 0)
	opts := append(slices.Clone(extra), queue.WithDelay(delay))

	return enq.Enqueue(ctx, DeliveryPayload{
		ID:        rec.ID,
		Recipient: rec.Recipient,
		Subject:   rec.Subject,
		Body:      rec.Body,
	}, opts...)
}

// bindHandle stores handle on record id, retrying once. If the handle cannot
// be stored the task is removed again: a task whose handle is unknown would be
// duplicated by the next recovery run.
func bindHandle(ctx context.Context, store RecordStore, enq Enqueuer, id int64, handle string) error {
	err := store.SetQueueHandle(ctx, id, handle)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
		return errors.Join(err, removeTask(enq, handle))
	}
	if err = store.SetQueueHandle(ctx, id, handle); err == nil {
		return nil
	}
	return errors.Join(err, removeTask(enq, handle))
}

// removeTask drops a task that was just enqueued. It runs detached from the
// caller's context so a cancelled request still cleans up.
func removeTask(enq Enqueuer, handle string) error {
	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()

	if err := enq.Remove(ctx, handle); err != nil && !errors.Is(err, queue.ErrTaskNotFound) {
		return fmt.Errorf("remove unbound task %s: %w", handle, err)
	}
	return nil
}
