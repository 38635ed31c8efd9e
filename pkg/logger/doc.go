// Package logger builds *slog.Logger instances for the scheduler processes.
//
// New takes functional options for level, output format, static attributes and
// ContextExtractor callbacks. Extractors run on every record, which is how the
// request id and environment reach log lines without being passed around:
//
//	log := logger.New(
//	    logger.WithEnvironment(environment.Production, "mailscheduler"),
//	    logger.WithContextExtractors(environment.LoggerExtractor(), requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "email sent", logger.RecordID(42), logger.MessageID(id))
//
// NewFromConfig does the same from a Config loaded with the config package,
// letting LOG_LEVEL and LOG_FORMAT override the environment preset.
//
// attr.go holds helpers (RecordID, TaskID, Attempt, Recipient and friends) so
// attribute keys stay consistent across packages.
package logger
