package scheduler

import (
	"fmt"
	"time"

	"github.com/dmitrymomot/mailscheduler/pkg/validator"
)

// Status is the delivery state of a scheduled email.
// The only transitions are scheduled -> sent and scheduled -> failed.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusScheduled, StatusSent, StatusFailed}

// ParseStatus validates a status name. An empty string is returned as is and
// means "any status" wherever a filter is accepted.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case "", StatusScheduled, StatusSent, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
	}
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

// Receipt is what the delivery transport returned for a sent email.
type Receipt struct {
	MessageID  string
	PreviewURL string
}

// JobRecord is one scheduled email and its outcome.
// Times have second precision.
type JobRecord struct {
	ID            int64
	Recipient     string
	Subject       string
	Body          string
	ScheduledTime time.Time
	CreatedAt     time.Time
	SentAt        *time.Time
	Status        Status
	QueueHandle   *string // most recent queue task
	ErrorMessage  *string // set on failure only
	Receipt       *Receipt
}

// NewRecord holds the caller supplied fields of a record.
type NewRecord struct {
	Recipient     string
	Subject       string
	Body          string
	ScheduledTime time.Time
}

// Validate checks required fields, recipient syntax and that ScheduledTime is
// strictly after now at second precision.
func (r NewRecord) Validate(now time.Time) error {
	err := validator.Apply(
		validator.RequiredString("to", r.Recipient),
		validator.ValidEmail("to", r.Recipient),
		validator.RequiredString("subject", r.Subject),
		validator.RequiredString("body", r.Body),
		validator.RequiredComparable("scheduledTime", r.ScheduledTime),
		validator.FutureUnix("scheduledTime", r.ScheduledTime.Unix(), now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// Stats counts records per status.
type Stats struct {
	Scheduled int
	Sent      int
	Failed    int
	Total     int
}

func (s *Stats) add(status Status, n int) {
	switch status {
	case StatusScheduled:
		s.Scheduled += n
	case StatusSent:
		s.Sent += n
	case StatusFailed:
		s.Failed += n
	}
	s.Total += n
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func unixTimePtr(sec *int64) *time.Time {
	if sec == nil {
		return nil
	}
	t := unixTime(*sec)
	return &t
}
