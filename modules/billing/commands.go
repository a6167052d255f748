package billing

import (
	"net/http"

	"github.com/dmitrymomot/billingsync/handler"
	"github.com/dmitrymomot/billingsync/pkg/binder"
	"github.com/dmitrymomot/billingsync/pkg/subscription"
)

type validatable interface {
	Validate() error
}

// failure defers err to the Wrap error handler.
type failure struct{ err error }

func (f failure) Render(http.ResponseWriter, *http.Request) error { return f.err }

func fail(err error) handler.Response { return failure{err: err} }

func validated[R validatable]() handler.Decorator[handler.Context, R] {
	return func(next handler.HandlerFunc[handler.Context, R]) handler.HandlerFunc[handler.Context, R] {
		return func(ctx handler.Context, req R) handler.Response {
			if err := req.Validate(); err != nil {
				return fail(err)
			}
			return next(ctx, req)
		}
	}
}

func jsonBody[R validatable](eh handler.ErrorHandler[handler.Context]) []handler.WrapOption[handler.Context, R] {
	return []handler.WrapOption[handler.Context, R]{
		handler.WithBinder[handler.Context, R](binder.JSON()),
		handler.WithErrorHandler[handler.Context, R](eh),
		handler.WithDecorators(validated[R]()),
	}
}

func (m *Module) upgrade(ctx handler.Context, req UpgradeRequest) handler.Response {
	id, ok := m.identity(ctx)
	if !ok {
		return fail(errUnauthenticated)
	}
	plan, err := subscription.ParsePlan(req.Plan)
	if err != nil {
		return fail(err)
	}

	session, err := m.commands.Upgrade(ctx, id.UserID, subscription.UpgradeRequest{
		Plan:        plan,
		CallbackURL: req.CallbackURL,
		Email:       id.Email,
		Name:        id.Name,
	})
	if err != nil {
		return fail(err)
	}
	return handler.JSON(URLResponse{Message: "Payment Url generated successfully", URL: session.URL})
}

func (m *Module) switchPlan(ctx handler.Context, req SwitchPlanRequest) handler.Response {
	id, ok := m.identity(ctx)
	if !ok {
		return fail(errUnauthenticated)
	}
	plan, err := subscription.ParsePlan(req.NewPlan)
	if err != nil {
		return fail(err)
	}

	result, err := m.commands.SwitchPlan(ctx, id.UserID, plan)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(SwitchPlanResponse{Success: result.Success, Message: result.Message})
}

func (m *Module) billingPortal(ctx handler.Context, req BillingPortalRequest) handler.Response {
	id, ok := m.identity(ctx)
	if !ok {
		return fail(errUnauthenticated)
	}

	session, err := m.commands.BillingPortal(ctx, id.UserID, req.CallbackURL)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(URLResponse{Message: "Payment URL generated successfully", URL: session.URL})
}

func (m *Module) status(ctx handler.Context, _ struct{}) handler.Response {
	id, ok := m.identity(ctx)
	if !ok {
		return fail(errUnauthenticated)
	}

	view, err := m.commands.Status(ctx, id.UserID)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(StatusResponse{
		Message: "Subscription fetched successfully",
		Data:    newSubscriptionData(view),
	})
}

func (m *Module) entitlement(ctx handler.Context, _ struct{}) handler.Response {
	id, ok := m.identity(ctx)
	if !ok {
		return fail(errUnauthenticated)
	}

	e, err := m.commands.Entitlement(ctx, id.UserID)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(EntitlementResponse{
		Entitled: e.Entitled,
		Reason:   string(e.Reason),
		Message:  e.Message(),
	})
}
