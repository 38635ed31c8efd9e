package scheduler

import "fmt"

const recordColumns = "id, to_email, subject, body, scheduled_time, created_at, sent_at, status, job_id, error_message, preview_url, message_id"

// rowScanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (JobRecord, error) {
	var (
		rec                  JobRecord
		scheduledAt, created int64
		sentAt               *int64
		status               string
		previewURL, msgID    *string
	)
	err := row.Scan(
		&rec.ID, &rec.Recipient, &rec.Subject, &rec.Body,
		&scheduledAt, &created, &sentAt, &status,
		&rec.QueueHandle, &rec.ErrorMessage, &previewURL, &msgID,
	)
	if err != nil {
		return JobRecord{}, err
	}

	rec.ScheduledTime = unixTime(scheduledAt)
	rec.CreatedAt = unixTime(created)
	rec.SentAt = unixTimePtr(sentAt)
	rec.Status = Status(status)
	if msgID != nil || previewURL != nil {
		rec.Receipt = &Receipt{}
		if msgID != nil {
			rec.Receipt.MessageID = *msgID
		}
		if previewURL != nil {
			rec.Receipt.PreviewURL = *previewURL
		}
	}
	return rec, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// nullable maps an empty string to NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
