// Package email delivers scheduled messages through a pluggable transport.
//
// Sender is the single capability the scheduler depends on: deliver one
// message, return a Receipt with the transport's message id (and, for the
// development transport, a preview location) or an error wrapping
// ErrFailedToSendEmail.
//
// Transports:
//   - postmark (NewPostmarkSender) for production delivery through github.com/mrz1836/postmark
//   - dev (NewDevSender) which writes HTML and JSON files to a local directory
//
// NewFromConfig picks the transport from Config.Driver and wraps it in a
// BreakerSender (github.com/sony/gobreaker/v2) so an unavailable provider fails
// fast instead of tying up worker slots:
//
//	sender, err := email.NewFromConfig(cfg)
//	if err != nil {
//	    return err
//	}
//	receipt, err := sender.Deliver(ctx, email.Message{
//	    To:      "user@example.com",
//	    Subject: "Reminder",
//	    Body:    "See you tomorrow",
//	})
//
// Messages are validated before any transport is touched; validation failures
// wrap ErrInvalidParams and do not count against the breaker.
package email
