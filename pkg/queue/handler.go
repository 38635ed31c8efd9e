package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

type (
	// Handler is the execution callback for a task name. It is invoked once per
	// due attempt and runs synchronously: returning nil completes the task,
	// returning an error schedules a retry or, when attempt.Final() is true,
	// moves the task to the dead letter set.
	Handler interface {
		Name() string
		Handle(ctx context.Context, attempt Attempt, payload json.RawMessage) error
	}

	TaskHandlerFunc[T any] func(ctx context.Context, attempt Attempt, payload T) error
)

// NewTaskHandler wraps a typed function. The task name is derived from T.
func NewTaskHandler[T any](handler TaskHandlerFunc[T]) Handler {
	var payload T
	return &taskHandler[T]{
		name:    qualifiedStructName(payload),
		handler: handler,
	}
}

type taskHandler[T any] struct {
	name    string
	handler TaskHandlerFunc[T]
}

func (h *taskHandler[T]) Name() string {
	return h.name
}

func (h *taskHandler[T]) Handle(ctx context.Context, attempt Attempt, payload json.RawMessage) error {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return fmt.Errorf("decode %s payload: %w", h.name, err)
	}
	return h.handler(ctx, attempt, t)
}
