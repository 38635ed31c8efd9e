package queue

import "time"

// Config holds the configuration for the task queue
type Config struct {
	Name               string        `env:"QUEUE_NAME" envDefault:"email-queue"`
	KeyPrefix          string        `env:"QUEUE_KEY_PREFIX" envDefault:"mailscheduler"`
	PollInterval       time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`
	LockTimeout        time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"30s"` // extended while a handler runs
	TaskTimeout        time.Duration `env:"QUEUE_TASK_TIMEOUT" envDefault:"2m"`
	MaxConcurrentTasks int           `env:"QUEUE_MAX_CONCURRENT_TASKS" envDefault:"10"`
	MaxRetries         int           `env:"QUEUE_MAX_RETRIES" envDefault:"3"`
	Backoff            time.Duration `env:"QUEUE_BACKOFF" envDefault:"2s"`

	// periodic tasks run on their own queue
	MaintenanceName        string        `env:"QUEUE_MAINTENANCE_NAME" envDefault:"maintenance"`
	SchedulerCheckInterval time.Duration `env:"QUEUE_SCHEDULER_CHECK_INTERVAL" envDefault:"10s"`
}

// RetryPolicy builds the policy described by the config.
func (c Config) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: c.MaxRetries,
		Backoff:    c.Backoff,
	}
}
