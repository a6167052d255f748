// Package requestid attaches a correlation ID to every HTTP request.
//
// The middleware reuses a valid X-Request-ID header (or any trusted header
// registered with WithTrustedHeader) and otherwise generates a UUID. The ID
// is stored in the request context, echoed back in the response, and picked
// up by the logger through LoggerExtractor:
//
//	r := chi.NewRouter()
//	r.Use(requestid.New(requestid.WithTrustedHeader("X-Amzn-Trace-Id")))
//
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
package requestid
