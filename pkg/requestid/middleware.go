package requestid

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

// Header is the canonical request id header.
const Header = "X-Request-ID"

const maxIDLength = 128

var validIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Option configures the middleware.
type Option func(*options)

type options struct {
	header    string
	generator func() string
}

// WithHeader reads and echoes the id under a different header name.
func WithHeader(name string) Option {
	return func(o *options) {
		if name != "" {
			o.header = name
		}
	}
}

// WithGenerator replaces the UUID generator.
func WithGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.generator = fn
		}
	}
}

// Middleware reuses a well-formed client supplied id or generates a new one,
// stores it in the request context and echoes it in the response header.
func Middleware(opts ...Option) func(http.Handler) http.Handler {
	o := options{header: Header, generator: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(o.header)
			if !isValidRequestID(id) {
				id = o.generator()
			}
			w.Header().Set(o.header, id)
			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), id)))
		})
	}
}

func isValidRequestID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	return validIDRegex.MatchString(id)
}
