// Package httpserver runs an http.Handler with graceful shutdown.
//
// Run binds the listener, fires start hooks, and serves until the context is
// cancelled, SIGINT/SIGTERM arrives, or Shutdown is called. Shutdown drains
// in-flight requests within the configured timeout so webhook deliveries that
// already reached a handler can finish their store writes.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		return err
//	}
//
// LivenessHandler and ReadinessHandler back the /health endpoints; readiness
// runs named checks such as a store ping.
package httpserver
