package logger

// Config holds logger settings loaded from the environment. Empty values keep
// the preset chosen for the runtime environment.
type Config struct {
	Level   string `env:"LOG_LEVEL"`
	Format  Format `env:"LOG_FORMAT"`
	Service string `env:"SERVICE_NAME" envDefault:"mailscheduler"`
}
