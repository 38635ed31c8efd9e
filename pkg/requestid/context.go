package requestid

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type contextKey struct{}

// WithContext stores the request id. It is also stored under chi's request id
// key so chi middleware sees the same value.
func WithContext(ctx context.Context, requestID string) context.Context {
	ctx = context.WithValue(ctx, chimw.RequestIDKey, requestID)
	return context.WithValue(ctx, contextKey{}, requestID)
}

// FromContext returns the request id, falling back to one set by chi's
// RequestID middleware.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return chimw.GetReqID(ctx)
}
