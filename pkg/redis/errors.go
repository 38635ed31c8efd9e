package redis

import "errors"

var (
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady                = errors.New("redis did not become ready after the configured attempts")
	ErrEmptyConnectionURL           = errors.New("empty redis connection URL")
	ErrInvalidRetryAttempts         = errors.New("redis retry attempts must be positive")
	ErrHealthcheckFailed            = errors.New("redis healthcheck failed")
)
