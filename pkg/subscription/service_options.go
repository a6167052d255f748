package subscription

import (
	"log/slog"
	"time"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source. Useful for deterministic tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCatalog sets the plan catalog shown in status views.
// Defaults to the embedded catalog.
func WithCatalog(c *Catalog) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}
