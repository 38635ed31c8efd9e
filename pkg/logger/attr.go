package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// RequestID records the request identifier under the key "request_id".
// An empty id yields an empty Attr.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// RecordID records a scheduled email record id under the key "record_id".
func RecordID(id int64) slog.Attr {
	return slog.Int64("record_id", id)
}

// TaskID records the queue task identifier under the key "task_id".
func TaskID(id string) slog.Attr {
	return slog.String("task_id", id)
}

// TaskName records the queue task name under the key "task".
func TaskName(name string) slog.Attr {
	return slog.String("task", name)
}

// Attempt records the attempt number and the maximum under the group "attempt".
func Attempt(n, maxAttempts int) slog.Attr {
	return Group("attempt", slog.Int("number", n), slog.Int("max", maxAttempts))
}

// Recipient records the destination address under the key "recipient".
func Recipient(addr string) slog.Attr {
	return slog.String("recipient", addr)
}

// Status records a lifecycle status under the key "status".
func Status(s string) slog.Attr {
	return slog.String("status", s)
}

// MessageID records the provider message identifier under the key "message_id".
// An empty id yields an empty Attr.
func MessageID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("message_id", id)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
