package email

import "fmt"

// NewFromConfig builds the sender selected by cfg.Driver, wrapped in a circuit breaker.
func NewFromConfig(cfg Config) (Sender, error) {
	var next Sender
	switch cfg.Driver {
	case DriverDev, "":
		if cfg.DevDir == "" {
			return nil, fmt.Errorf("%w: DevDir is required for the dev driver", ErrInvalidConfig)
		}
		next = NewDevSender(cfg.DevDir)
	case DriverPostmark:
		s, err := NewPostmarkSender(cfg)
		if err != nil {
			return nil, err
		}
		next = s
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", ErrInvalidConfig, cfg.Driver)
	}

	return NewBreakerSender(next, "email-"+string(cfg.Driver), cfg.BreakerMaxFailures, cfg.BreakerTimeout), nil
}
