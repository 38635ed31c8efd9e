package scheduler

import (
	"context"
	"time"
)

// RecordStore is the durable source of truth for scheduled emails.
//
// Every mutation is a single guarded write, so concurrent callers touching the
// same id serialize on it. MarkSent and MarkFailed only apply to scheduled
// records and return ErrInvalidTransition otherwise; repeating either call is
// therefore harmless.
type RecordStore interface {
	// Insert stores a scheduled record. It fails with ErrValidation when
	// ScheduledTime is not strictly after the store clock.
	Insert(ctx context.Context, rec NewRecord) (JobRecord, error)
	// SetQueueHandle records the current queue task. Idempotent; ErrNotFound
	// for an unknown id.
	SetQueueHandle(ctx context.Context, id int64, handle string) error
	MarkSent(ctx context.Context, id int64, sentAt time.Time, receipt Receipt) error
	MarkFailed(ctx context.Context, id int64, message string) error
	Get(ctx context.Context, id int64) (JobRecord, error)
	// List returns records with the given status, or all of them for "",
	// newest first with ties broken by descending id.
	List(ctx context.Context, status Status) ([]JobRecord, error)
	Stats(ctx context.Context) (Stats, error)
}
