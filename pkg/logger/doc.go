// Package logger builds *slog.Logger instances for billingsync services.
//
// New accepts functional options for format, level, static attributes and
// ContextExtractor callbacks. Extractors run on every record, which is how the
// HTTP layer gets request and user identifiers onto each log line without
// threading a logger through every call.
//
// Attribute helpers in attr.go (UserID, EventID, ProviderSubscriptionID, Plan,
// Status and friends) keep key names consistent across packages:
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "billingd"),
//	    logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "subscription activated",
//	    logger.UserID(userID),
//	    logger.Plan(plan),
//	)
//
// Error and Errors return an empty attribute for nil errors so they can be
// passed unconditionally.
package logger
