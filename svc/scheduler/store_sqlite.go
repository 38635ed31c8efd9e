package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrymomot/mailscheduler/pkg/sqlite"
)

// SQLiteStore is a RecordStore on the emails table in a SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore wraps a database that already has the migrations applied.
func NewSQLiteStore(db *sql.DB, opts ...Option) *SQLiteStore {
	o := newOptions(opts)
	return &SQLiteStore{db: db, now: o.now}
}

func (s *SQLiteStore) Insert(ctx context.Context, in NewRecord) (JobRecord, error) {
	now := s.now()
	if err := in.Validate(now); err != nil {
		return JobRecord{}, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO emails (to_email, subject, body, scheduled_time, created_at, status)
		 VALUES (?, ?, ?, ?, ?, 'scheduled')`,
		in.Recipient, in.Subject, in.Body, in.ScheduledTime.Unix(), now.Unix(),
	)
	if err != nil {
		return JobRecord{}, sqliteErr("insert record", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return JobRecord{}, storeErr("insert record", err)
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) SetQueueHandle(ctx context.Context, id int64, handle string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE emails SET job_id = ? WHERE id = ?`, handle, id)
	if err != nil {
		return sqliteErr("set queue handle", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("set queue handle", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) MarkSent(ctx context.Context, id int64, sentAt time.Time, receipt Receipt) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE emails SET status = 'sent', sent_at = ?, message_id = ?, preview_url = ?
		 WHERE id = ? AND status = 'scheduled'`,
		sentAt.Unix(), nullable(receipt.MessageID), nullable(receipt.PreviewURL), id,
	)
	if err != nil {
		return sqliteErr("mark sent", err)
	}
	return s.guard(ctx, id, res)
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, id int64, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE emails SET status = 'failed', error_message = ?
		 WHERE id = ? AND status = 'scheduled'`,
		message, id,
	)
	if err != nil {
		return sqliteErr("mark failed", err)
	}
	return s.guard(ctx, id, res)
}

func (s *SQLiteStore) guard(ctx context.Context, id int64, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("rows affected", err)
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM emails WHERE id = ?)`, id).Scan(&exists); err != nil {
		return storeErr("check record", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInvalidTransition
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (JobRecord, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM emails WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return JobRecord{}, ErrNotFound
	}
	if err != nil {
		return JobRecord{}, storeErr("get record", err)
	}
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context, status Status) ([]JobRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM emails`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqliteErr("list records", err)
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

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM emails GROUP BY status`)
	if err != nil {
		return Stats{}, sqliteErr("stats", err)
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

// sqliteErr marks lock contention so callers can tell it from other failures.
func sqliteErr(op string, err error) error {
	if sqlite.IsBusyError(err) {
		return storeErr(op, errors.Join(ErrStoreBusy, err))
	}
	return storeErr(op, err)
}
