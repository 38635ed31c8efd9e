package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/mailscheduler/pkg/email"
	"github.com/dmitrymomot/mailscheduler/pkg/logger"
	"github.com/dmitrymomot/mailscheduler/pkg/queue"
)

// deliveryTag labels outgoing messages at the transport.
const deliveryTag = "scheduled"

// Worker delivers due emails and records the outcome.
type Worker struct {
	store  RecordStore
	sender email.Sender
	log    *slog.Logger
	now    func() time.Time
}

// NewWorker returns the delivery callback for the queue worker.
func NewWorker(store RecordStore, sender email.Sender, opts ...Option) *Worker {
	o := newOptions(opts)
	return &Worker{
		store:  store,
		sender: sender,
		log:    o.logger.With(logger.Component("delivery")),
		now:    o.now,
	}
}

// Handler registers Deliver for DeliveryPayload tasks.
func (w *Worker) Handler() queue.Handler {
	return queue.NewTaskHandler(w.Deliver)
}

// Deliver runs one delivery attempt.
//
// A nil return completes the task. Returning an error makes the queue retry;
// the record is marked failed only once attempt is the final one. Store errors
// after a successful send are logged and swallowed so the email is not sent
// twice.
func (w *Worker) Deliver(ctx context.Context, attempt queue.Attempt, p DeliveryPayload) error {
	log := w.log.With(
		logger.RecordID(p.ID),
		logger.TaskID(attempt.TaskID.String()),
		logger.Attempt(attempt.Number, attempt.MaxAttempts),
	)

	rec, err := w.store.Get(ctx, p.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		log.WarnContext(ctx, "record for delivery task not found")
		return nil
	case err != nil:
		return err
	case rec.Status != StatusScheduled:
		log.InfoContext(ctx, "record already settled, skipping delivery", logger.Status(string(rec.Status)))
		return nil
	}

	start := w.now()
	receipt, err := w.sender.Deliver(ctx, email.Message{
		To:      p.Recipient,
		Subject: p.Subject,
		Body:    p.Body,
		Tag:     deliveryTag,
	})
	if err != nil {
		return w.fail(ctx, log, p.ID, attempt, err)
	}

	sentAt := w.now()
	err = w.store.MarkSent(ctx, p.ID, sentAt, Receipt{
		MessageID:  receipt.MessageID,
		PreviewURL: receipt.PreviewURL,
	})
	switch {
	case errors.Is(err, ErrInvalidTransition):
		log.WarnContext(ctx, "duplicate delivery, record already settled")
	case err != nil:
		log.ErrorContext(ctx, "email sent but status not recorded", logger.MessageID(receipt.MessageID), logger.Error(err))
	default:
		log.InfoContext(ctx, "email sent",
			logger.Recipient(p.Recipient),
			logger.MessageID(receipt.MessageID),
			logger.Duration(sentAt.Sub(start)),
		)
	}
	return nil
}

// fail decides between retry and terminal failure. Invalid messages never
// succeed on retry, so they fail on the spot.
func (w *Worker) fail(ctx context.Context, log *slog.Logger, id int64, attempt queue.Attempt, deliverErr error) error {
	permanent := errors.Is(deliverErr, email.ErrInvalidParams)
	if !permanent && !attempt.Final() {
		log.WarnContext(ctx, "delivery attempt failed", logger.Error(deliverErr))
		return deliverErr
	}

	// the task is settling; a cancelled handler context must not skip the write
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	switch err := w.store.MarkFailed(mctx, id, deliverErr.Error()); {
	case errors.Is(err, ErrInvalidTransition):
		log.WarnContext(ctx, "record already settled, failure not recorded")
	case err != nil:
		log.ErrorContext(ctx, "mark record failed", logger.Errors(deliverErr, err))
	default:
		log.ErrorContext(ctx, "email delivery failed", logger.Error(deliverErr))
	}

	if permanent {
		return nil
	}
	return deliverErr
}
