package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/billingsync/modules/billing"
	"github.com/dmitrymomot/billingsync/pkg/config"
	"github.com/dmitrymomot/billingsync/pkg/httpserver"
	"github.com/dmitrymomot/billingsync/pkg/jwt"
	"github.com/dmitrymomot/billingsync/pkg/requestid"
)

const readinessTimeout = 5 * time.Second

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the billing API and webhook endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			var jwtCfg jwt.Config
			if err := config.Load(&jwtCfg); err != nil {
				return fmt.Errorf("jwt config: %w", err)
			}
			tokens, err := jwt.NewFromConfig(jwtCfg)
			if err != nil {
				return err
			}
			var srvCfg httpserver.Config
			if err := config.Load(&srvCfg); err != nil {
				return fmt.Errorf("http config: %w", err)
			}

			return c.withApp(cmd.Context(), func(a *app) error {
				srv := httpserver.NewFromConfig(srvCfg, httpserver.WithLogger(c.log))
				return srv.Run(cmd.Context(), newRouter(a, jwt.Middleware(tokens)))
			})
		},
	}
}

// newRouter mounts the health endpoints and the billing module.
func newRouter(a *app, auth func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(a.log))

	r.Get("/livez", httpserver.LivenessHandler())
	r.Get("/healthz", httpserver.ReadinessHandler(a.log, readinessTimeout, a.checks...))

	module := billing.NewModule(a.service, a.reconciler,
		billing.WithAuth(auth),
		billing.WithLogger(a.log),
	)
	r.Mount("/billing", module.Handle())
	return r
}

func accessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.DebugContext(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
