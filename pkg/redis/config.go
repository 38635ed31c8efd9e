package redis

import "time"

// Config describes how the broker connection is established.
// Defaults mirror the startup behaviour of the scheduler: ten attempts, two seconds apart.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"` // ConnectionURL is the URL of the broker, e.g. "redis://:password@localhost:6379/0".
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"10"`            // RetryAttempts is the maximum number of connection attempts.
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`            // RetryInterval is the fixed pause between attempts.
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"1m"`           // ConnectTimeout bounds the whole connection procedure.
}
