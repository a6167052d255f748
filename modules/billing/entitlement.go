package billing

import (
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/billingsync/handler"
	"github.com/dmitrymomot/billingsync/pkg/logger"
)

// RequireEntitlement returns middleware that lets a request through only
// while the caller's subscription grants access. Denials are 403 responses
// carrying the reason code and its message.
func RequireEntitlement(checker EntitlementChecker, identity IdentityFunc, log *slog.Logger) func(http.Handler) http.Handler {
	if checker == nil {
		panic("billing: entitlement checker is required")
	}
	if identity == nil {
		identity = JWTIdentity
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			id, ok := identity(ctx)
			if !ok {
				_ = handler.JSONError(errUnauthenticated).Render(w, r)
				return
			}

			e, err := checker.Entitlement(ctx, id.UserID)
			if err != nil {
				log.ErrorContext(ctx, "entitlement check failed",
					logger.Component("billing_guard"),
					logger.UserID(id.UserID),
					logger.Error(err),
				)
				_ = handler.JSONError(err).Render(w, r)
				return
			}
			if !e.Entitled {
				log.InfoContext(ctx, "access denied by subscription guard",
					logger.Component("billing_guard"),
					logger.UserID(id.UserID),
					slog.String("reason", string(e.Reason)),
				)
				_ = handler.JSON(handler.ErrorBody{Error: e.Message(), Code: string(e.Reason)},
					handler.WithJSONStatus(http.StatusForbidden),
				).Render(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireEntitlement gates routes with the module's commands and identity.
func (m *Module) RequireEntitlement() func(http.Handler) http.Handler {
	return RequireEntitlement(m.commands, m.identity, m.log)
}
