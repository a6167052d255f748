package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/billingsync/pkg/binder"
	"github.com/dmitrymomot/billingsync/pkg/logger"
	"github.com/dmitrymomot/billingsync/pkg/requestid"
)

// Classifier maps a domain error onto an HTTPError. It returns false for
// errors it does not recognize.
type Classifier func(err error) (HTTPError, bool)

// ErrorHandlerConfig configures NewErrorHandler.
type ErrorHandlerConfig struct {
	// Classify maps domain errors; binder and validation errors are handled first.
	Classify Classifier
}

// classify resolves the HTTPError for err: binder failures, then an
// HTTPError already in the chain, then the configured classifier.
func (cfg ErrorHandlerConfig) classify(err error) (HTTPError, bool) {
	switch {
	case errors.Is(err, binder.ErrRequestTooLarge):
		return ErrRequestEntityTooLarge.WithMessage("Request body is too large"), true
	case errors.Is(err, binder.ErrUnsupportedMediaType), errors.Is(err, binder.ErrMissingContentType):
		return ErrUnsupportedMediaType.WithMessage("Content-Type must be application/json"), true
	case errors.Is(err, binder.ErrFailedToParseJSON):
		return ErrBadRequest.WithMessage("Malformed request body"), true
	}

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}
	if cfg.Classify != nil {
		return cfg.Classify(err)
	}
	return HTTPError{}, false
}

// NewErrorHandler creates a JSON error handler that logs 4xx responses at
// Warn and 5xx responses at Error.
func NewErrorHandler(log *slog.Logger, cfg ErrorHandlerConfig) ErrorHandler[Context] {
	if log == nil {
		log = slog.Default()
	}

	return func(ctx Context, err error) {
		r := ctx.Request()

		target := err
		if httpErr, ok := cfg.classify(err); ok {
			target = httpErr
		}
		status, body := errorToBody(target)
		resp := JSON(body, WithJSONStatus(status))

		level := slog.LevelError
		if status < http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		log.LogAttrs(r.Context(), level, "request error",
			logger.RequestID(requestid.FromContext(r.Context())),
			logger.Error(err),
			slog.Int("status_code", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("error_handler"),
		)

		if renderErr := resp.Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.ErrorContext(r.Context(), "failed to render error response",
				logger.Error(renderErr),
				logger.Component("error_handler"),
			)
		}
	}
}
