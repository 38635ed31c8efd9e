// Package config loads typed configuration from environment variables.
//
// It wraps github.com/joho/godotenv (optional .env files) and
// github.com/caarlos0/env/v11 (struct tags). Each configuration type is parsed
// once and cached, so components can call Load for their own config struct
// without coordinating with the bootstrap code.
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//
// Tests can call ResetCache or ForceReload after changing the environment.
package config
