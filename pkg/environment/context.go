package environment

import (
	"context"
	"fmt"
	"strings"
)

// Environment represents application environment.
type Environment string

const (
	// Development for development environment.
	Development Environment = "development"
	// Production for production environment.
	Production Environment = "production"
	// Staging for staging environment.
	Staging Environment = "staging"
)

// Parse normalizes an environment name. Short aliases (dev, stage, prod) and
// letter case are accepted; an empty string means Development.
func Parse(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "development", "dev", "local":
		return Development, nil
	case "staging", "stage":
		return Staging, nil
	case "production", "prod":
		return Production, nil
	default:
		return "", fmt.Errorf("unknown environment %q", s)
	}
}

// UnmarshalText lets env-tagged config fields hold an Environment directly.
func (e *Environment) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

func (e Environment) String() string { return string(e) }

// IsProduction reports whether e is Production.
func (e Environment) IsProduction() bool { return e == Production }

// IsDevelopment reports whether e is Development.
func (e Environment) IsDevelopment() bool { return e == Development }

type contextKey struct{}

// WithContext adds environment to context
func WithContext(ctx context.Context, env Environment) context.Context {
	return context.WithValue(ctx, contextKey{}, env)
}

// FromContext retrieves environment from context
func FromContext(ctx context.Context) Environment {
	if ctx == nil {
		return ""
	}
	env, _ := ctx.Value(contextKey{}).(Environment)
	return env
}

// IsProduction checks if the environment from context is production
func IsProduction(ctx context.Context) bool {
	return FromContext(ctx).IsProduction()
}

// IsDevelopment checks if the environment from context is development
func IsDevelopment(ctx context.Context) bool {
	return FromContext(ctx).IsDevelopment()
}
