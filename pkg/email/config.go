package email

import "time"

// Driver selects the delivery transport.
type Driver string

const (
	DriverDev      Driver = "dev"      // writes messages to EMAIL_DEV_DIR
	DriverPostmark Driver = "postmark" // sends through the Postmark API
)

// Config holds email service configuration.
// Postmark tokens are only required with DriverPostmark; the dev driver needs a
// writable directory and nothing else.
type Config struct {
	Driver               Driver        `env:"EMAIL_DRIVER" envDefault:"dev"`
	PostmarkServerToken  string        `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string        `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string        `env:"SENDER_EMAIL" envDefault:"scheduler@example.com"`
	SupportEmail         string        `env:"SUPPORT_EMAIL"`
	DevDir               string        `env:"EMAIL_DEV_DIR" envDefault:"./data/outbox"`
	BreakerMaxFailures   uint32        `env:"EMAIL_BREAKER_MAX_FAILURES" envDefault:"5"` // consecutive failures that open the breaker
	BreakerTimeout       time.Duration `env:"EMAIL_BREAKER_TIMEOUT" envDefault:"5s"`      // how long the breaker stays open; keep it below the queue retry window
}
