package scheduler

import (
	"errors"

	"github.com/dmitrymomot/mailscheduler/pkg/email"
	"github.com/dmitrymomot/mailscheduler/pkg/redis"
)

var (
	// ErrValidation wraps validator.ValidationErrors for rejected input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned for an unknown record id.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidTransition guards status monotonicity: the record is not scheduled.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrEnqueue means the record was stored but its delivery task was not.
	ErrEnqueue = errors.New("failed to enqueue delivery")
	// ErrStore wraps storage driver failures.
	ErrStore = errors.New("record store failure")
	// ErrStoreBusy marks lock contention in the store; retrying later can succeed.
	ErrStoreBusy = errors.New("record store busy")

	// ErrBrokerUnavailable is the startup failure when the broker cannot be reached.
	ErrBrokerUnavailable = redis.ErrRedisNotReady
	// ErrDelivery is the failure reported by the email transport.
	ErrDelivery = email.ErrFailedToSendEmail
)
