// Package environment names the deployment environment (development, staging,
// production) and carries it through context.Context.
//
// Parse accepts the usual aliases, and Environment implements
// encoding.TextUnmarshaler so it can be used directly in env-tagged config:
//
//	type AppConfig struct {
//	    Env environment.Environment `env:"ENV" envDefault:"development"`
//	}
//
// Middleware stores the environment on every request context, and
// LoggerExtractor turns it into an "env" log attribute.
package environment
