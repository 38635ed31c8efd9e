package queue

import "errors"

// Common errors
var (
	// ErrRepositoryNil is returned when a nil repository is provided
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrInvalidHandle is returned when a task handle cannot be parsed
	ErrInvalidHandle = errors.New("invalid task handle")

	// ErrHandlerNotFound is returned when no handler is registered for a task
	ErrHandlerNotFound = errors.New("no handler registered for task type")

	// ErrNoHandlers is returned when worker has no handlers registered
	ErrNoHandlers = errors.New("no task handlers registered")

	// ErrNoTaskToClaim is returned by storage when nothing is due
	ErrNoTaskToClaim = errors.New("no task to claim")

	// ErrTaskNotFound is returned when a task does not exist (or is no longer pending on removal)
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskActive is returned when removing a task that a worker currently holds
	ErrTaskActive = errors.New("task is being processed")

	// ErrTaskNotProcessing is returned when settling a task that is not claimed
	ErrTaskNotProcessing = errors.New("task is not in processing state")

	// ErrTaskExists is returned when a task with the same ID is already stored
	ErrTaskExists = errors.New("task already exists")

	// ErrSchedulerNotConfigured is returned when starting a scheduler without periodic tasks
	ErrSchedulerNotConfigured = errors.New("scheduler has no periodic tasks")

	// ErrTaskAlreadyRegistered is returned when a periodic task name is added twice
	ErrTaskAlreadyRegistered = errors.New("periodic task already registered")

	// ErrInvalidPeriodicTask is returned for a periodic task without name or schedule
	ErrInvalidPeriodicTask = errors.New("periodic task needs a name and a schedule")
)
