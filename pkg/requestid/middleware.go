package requestid

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

const (
	Header      = "X-Request-ID"
	maxIDLength = 128
)

var validIDRegex = regexp.MustCompile("^[a-zA-Z0-9_-]+$")

// Option configures the middleware.
type Option func(*options)

type options struct {
	headers  []string
	generate func() string
}

// WithTrustedHeader adds a header consulted after X-Request-ID, such as a
// load balancer trace header. The first valid value wins.
func WithTrustedHeader(name string) Option {
	return func(o *options) {
		if name != "" {
			o.headers = append(o.headers, name)
		}
	}
}

// WithGenerator replaces the UUID generator for new IDs.
func WithGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.generate = fn
		}
	}
}

// New returns middleware that stores a request ID in the request context and
// echoes it in the X-Request-ID response header. Client supplied IDs are
// reused only when they are short and URL safe.
func New(opts ...Option) func(http.Handler) http.Handler {
	o := options{
		headers:  []string{Header},
		generate: uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := ""
			for _, h := range o.headers {
				if v := r.Header.Get(h); isValidRequestID(v) {
					requestID = v
					break
				}
			}
			if requestID == "" {
				requestID = o.generate()
			}
			w.Header().Set(Header, requestID)
			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), requestID)))
		})
	}
}

// Middleware is New with default options.
func Middleware(next http.Handler) http.Handler {
	return New()(next)
}

func isValidRequestID(id string) bool {
	if len(id) == 0 || len(id) > maxIDLength {
		return false
	}
	return validIDRegex.MatchString(id)
}
