package scheduler

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/mailscheduler/pkg/pg"
)

// pgxExecutor is the part of *pgxpool.Pool the store uses.
type pgxExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ pgxExecutor = (*pgxpool.Pool)(nil)

// PostgresStore is a RecordStore on the emails table in PostgreSQL.
type PostgresStore struct {
	db  pgxExecutor
	now func() time.Time
}

// NewPostgresStore wraps a pool that already has the migrations applied.
func NewPostgresStore(pool *pgxpool.Pool, opts ...Option) *PostgresStore {
	o := newOptions(opts)
	return &PostgresStore{db: pool, now: o.now}
}

func (s *PostgresStore) Insert(ctx context.Context, in NewRecord) (JobRecord, error) {
	now := s.now()
	if err := in.Validate(now); err != nil {
		return JobRecord{}, err
	}

	row := s.db.QueryRow(ctx,
		`INSERT INTO emails (to_email, subject, body, scheduled_time, created_at, status)
		 VALUES ($1, $2, $3, $4, $5, 'scheduled')
		 RETURNING `+recordColumns,
		in.Recipient, in.Subject, in.Body, in.ScheduledTime.Unix(), now.Unix(),
	)
	rec, err := scanRecord(row)
	if err != nil {
		return JobRecord{}, storeErr("insert record", err)
	}
	return rec, nil
}

func (s *PostgresStore) SetQueueHandle(ctx context.Context, id int64, handle string) error {
	tag, err := s.db.Exec(ctx, `UPDATE emails SET job_id = $2 WHERE id = $1`, id, handle)
	if err != nil {
		return storeErr("set queue handle", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkSent(ctx context.Context, id int64, sentAt time.Time, receipt Receipt) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE emails SET status = 'sent', sent_at = $2, message_id = $3, preview_url = $4
		 WHERE id = $1 AND status = 'scheduled'`,
		id, sentAt.Unix(), nullable(receipt.MessageID), nullable(receipt.PreviewURL),
	)
	if err != nil {
		return storeErr("mark sent", err)
	}
	return s.guard(ctx, id, tag.RowsAffected())
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id int64, message string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE emails SET status = 'failed', error_message = $2
		 WHERE id = $1 AND status = 'scheduled'`,
		id, message,
	)
	if err != nil {
		return storeErr("mark failed", err)
	}
	return s.guard(ctx, id, tag.RowsAffected())
}

// guard turns a zero-row conditional update into ErrNotFound or ErrInvalidTransition.
func (s *PostgresStore) guard(ctx context.Context, id int64, affected int64) error {
	if affected > 0 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM emails WHERE id = $1)`, id).Scan(&exists); err != nil {
		return storeErr("check record", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInvalidTransition
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (JobRecord, error) {
	rec, err := scanRecord(s.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM emails WHERE id = $1`, id))
	if pg.IsNotFoundError(err) {
		return JobRecord{}, ErrNotFound
	}
	if err != nil {
		return JobRecord{}, storeErr("get record", err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context, status Status) ([]JobRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM emails`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list records", err)
	}
	defer rows.Close()

	out := []JobRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, storeErr("scan record", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list records", err)
	}
	return out, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.Query(ctx, `SELECT status, COUNT(*) FROM emails GROUP BY status`)
	if err != nil {
		return Stats{}, storeErr("stats", err)
	}
	defer rows.Close()

	var st Stats
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return Stats{}, storeErr("scan stats", err)
		}
		st.add(Status(status), n)
	}
	if err := rows.Err(); err != nil {
		return Stats{}, storeErr("stats", err)
	}
	return st, nil
}
