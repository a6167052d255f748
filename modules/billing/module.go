package billing

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/billingsync/handler"
	"github.com/dmitrymomot/billingsync/pkg/subscription"
)

// Commands are the user-triggered subscription operations.
type Commands interface {
	Upgrade(ctx context.Context, userID uuid.UUID, req subscription.UpgradeRequest) (*subscription.CheckoutSession, error)
	SwitchPlan(ctx context.Context, userID uuid.UUID, plan subscription.Plan) (*subscription.SwitchResult, error)
	BillingPortal(ctx context.Context, userID uuid.UUID, returnURL string) (*subscription.PortalSession, error)
	Status(ctx context.Context, userID uuid.UUID) (*subscription.View, error)
	EntitlementChecker
}

// EntitlementChecker evaluates the subscription guard for a user.
type EntitlementChecker interface {
	Entitlement(ctx context.Context, userID uuid.UUID) (subscription.Entitlement, error)
}

// WebhookProcessor verifies and applies provider events.
type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, payload []byte, signature string) (subscription.Outcome, error)
}

// Module serves the billing endpoints.
type Module struct {
	commands     Commands
	webhooks     WebhookProcessor
	auth         func(http.Handler) http.Handler
	identity     IdentityFunc
	log          *slog.Logger
	errorHandler handler.ErrorHandler[handler.Context]
}

// Option configures a Module.
type Option func(*Module)

// WithAuth sets the middleware that authenticates subscription routes,
// typically jwt.Middleware.
func WithAuth(mw func(http.Handler) http.Handler) Option {
	return func(m *Module) {
		m.auth = mw
	}
}

// WithIdentity overrides how the authenticated user is read from the request.
func WithIdentity(fn IdentityFunc) Option {
	return func(m *Module) {
		if fn != nil {
			m.identity = fn
		}
	}
}

// WithLogger sets the module logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Module) {
		if log != nil {
			m.log = log
		}
	}
}

// NewModule creates the billing HTTP module.
func NewModule(commands Commands, webhooks WebhookProcessor, opts ...Option) *Module {
	if commands == nil || webhooks == nil {
		panic("billing: commands and webhook processor are required")
	}
	m := &Module{
		commands: commands,
		webhooks: webhooks,
		identity: JWTIdentity,
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.errorHandler = handler.NewErrorHandler(m.log, handler.ErrorHandlerConfig{Classify: ClassifyError})
	return m
}

// Handle returns the router, meant to be mounted at /billing.
func (m *Module) Handle() http.Handler {
	r := chi.NewRouter()

	r.Post("/webhook", m.webhook)

	r.Route("/subscription", func(r chi.Router) {
		if m.auth != nil {
			r.Use(m.auth)
		}

		r.Post("/upgrade", handler.Wrap(m.upgrade, jsonBody[UpgradeRequest](m.errorHandler)...))
		r.Post("/switch-plan", handler.Wrap(m.switchPlan, jsonBody[SwitchPlanRequest](m.errorHandler)...))
		r.Post("/billing-portal", handler.Wrap(m.billingPortal, jsonBody[BillingPortalRequest](m.errorHandler)...))
		r.Get("/status", handler.Wrap(m.status,
			handler.WithErrorHandler[handler.Context, struct{}](m.errorHandler),
		))
		r.Get("/entitlement", handler.Wrap(m.entitlement,
			handler.WithErrorHandler[handler.Context, struct{}](m.errorHandler),
		))
	})

	return r
}
