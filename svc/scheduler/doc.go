// Package scheduler schedules emails for delivery at a future time.
//
// A JobRecord in a RecordStore is the source of truth for every email. Service
// stores new records and enqueues a delayed DeliveryPayload task per record;
// Worker is the queue callback that sends the email and moves the record to
// sent, or to failed once the retry policy is exhausted. Recovery runs at
// startup and re-enqueues every record still scheduled, so nothing is lost when
// the broker state is gone or stale.
//
// Status only moves scheduled -> sent or scheduled -> failed. Stores enforce
// this with conditional updates and report ErrInvalidTransition otherwise, which
// makes duplicate deliveries of a task harmless to the record.
//
// Three stores are provided: MemoryStore for tests, PostgresStore on pgx and
// SQLiteStore on database/sql. Migrations embeds the goose migrations for both
// databases.
package scheduler
