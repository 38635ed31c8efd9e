package email

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerSender guards another Sender with a circuit breaker. After the
// configured number of consecutive failures, deliveries fail fast with
// ErrCircuitOpen until the timeout elapses and a trial request succeeds.
type BreakerSender struct {
	next    Sender
	breaker *gobreaker.CircuitBreaker[Receipt]
}

// NewBreakerSender wraps next. maxFailures <= 0 falls back to 5, timeout <= 0 to 5s.
func NewBreakerSender(next Sender, name string, maxFailures uint32, timeout time.Duration) *BreakerSender {
	if maxFailures == 0 {
		maxFailures = 5
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &BreakerSender{
		next: next,
		breaker: gobreaker.NewCircuitBreaker[Receipt](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			IsSuccessful: func(err error) bool {
				// a malformed message says nothing about the transport
				return err == nil || errors.Is(err, ErrInvalidParams)
			},
		}),
	}
}

// Deliver implements Sender.
func (b *BreakerSender) Deliver(ctx context.Context, msg Message) (Receipt, error) {
	receipt, err := b.breaker.Execute(func() (Receipt, error) {
		return b.next.Deliver(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Receipt{}, errors.Join(ErrFailedToSendEmail, ErrCircuitOpen, err)
	}
	return receipt, err
}

// State reports the breaker state ("closed", "half-open" or "open").
func (b *BreakerSender) State() string {
	return b.breaker.State().String()
}
