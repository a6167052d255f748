// Package handler adapts typed request handlers to net/http.
//
// Wrap binds the request into R, runs the HandlerFunc and renders the
// returned Response. Binding and rendering failures go to an ErrorHandler;
// NewErrorHandler renders them as JSON ErrorBody values and logs them with
// the request ID.
//
//	errorHandler := handler.NewErrorHandler(log, handler.ErrorHandlerConfig{
//		Classify: classifyBillingError,
//	})
//
//	r.Post("/upgrade", handler.Wrap(upgrade,
//		handler.WithBinder[handler.Context, UpgradeRequest](binder.JSON()),
//		handler.WithErrorHandler[handler.Context, UpgradeRequest](errorHandler),
//	))
//
// HTTPError carries a status code, a stable key and a display message. Errors
// without a classification render as a generic 500 so internal detail never
// reaches the caller.
package handler
