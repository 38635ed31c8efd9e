package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// configCache stores one parsed copy per configuration type.
type configCache struct {
	mu     sync.RWMutex
	values map[string]any
}

var (
	globalCache = &configCache{
		values: make(map[string]any),
	}

	defaultEnvLoaded sync.Once
)

// Load parses environment variables into v based on its `env` tags.
// Each configuration type is parsed once per process; later calls copy the
// cached value. The default .env file in the working directory, if present,
// is read before the first parse. A failed parse is not cached, so the caller
// may fix the environment and try again.
//
// Example:
//
//	type BrokerConfig struct {
//		URL           string `env:"REDIS_URL,required"`
//		RetryAttempts int    `env:"REDIS_RETRY_ATTEMPTS" envDefault:"10"`
//	}
//
//	var cfg BrokerConfig
//	if err := config.Load(&cfg); err != nil {
//		// Handle error
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	defaultEnvLoaded.Do(func() {
		// the .env file is optional
		_ = godotenv.Load()
	})

	key := typeKey[T]()

	globalCache.mu.RLock()
	cached, ok := globalCache.values[key]
	globalCache.mu.RUnlock()
	if ok {
		*v = cached.(T)
		return nil
	}

	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()

	// another goroutine may have parsed it while we waited
	if cached, ok := globalCache.values[key]; ok {
		*v = cached.(T)
		return nil
	}

	parsed := *v
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	globalCache.values[key] = parsed
	*v = parsed

	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
// This is useful for configurations that are required for the application to start.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("Failed to load required configuration: %v", err))
	}
}

// LoadEnv reads the given .env files into the process environment. Later
// files override earlier ones and both override variables already set.
// Without arguments it reads ./.env without overriding.
func LoadEnv(paths ...string) error {
	var err error
	if len(paths) == 0 {
		err = godotenv.Load()
	} else {
		err = godotenv.Overload(paths...)
	}
	if err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}

	// explicit files replace the implicit default
	defaultEnvLoaded.Do(func() {})
	return nil
}

// MustLoadEnv works like LoadEnv but panics on failure.
func MustLoadEnv(paths ...string) {
	if err := LoadEnv(paths...); err != nil {
		panic(fmt.Sprintf("Failed to load env files: %v", err))
	}
}

// ForceReload drops the cached copy of T and parses the environment again.
func ForceReload[T any](v *T) error {
	globalCache.mu.Lock()
	delete(globalCache.values, typeKey[T]())
	globalCache.mu.Unlock()

	return Load(v)
}

// ResetCache forgets every cached configuration.
func ResetCache() {
	globalCache.mu.Lock()
	clear(globalCache.values)
	globalCache.mu.Unlock()
}

// typeKey returns a string identifier for the generic type T
func typeKey[T any]() string {
	t := reflect.TypeFor[T]()
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}
