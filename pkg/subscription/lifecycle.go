package subscription

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/billingsync/pkg/logger"
	"github.com/dmitrymomot/billingsync/pkg/statemachine"
)

// lifecycle lists the record transitions provider events may cause. Guards
// receive the re-fetched *ProviderSubscription as data. The table says which
// moves are legal; the store's conditional writes stay the authority under
// concurrency.
var lifecycle = statemachine.MustNew(
	// A completed checkout activates anything that is not already active.
	statemachine.WithTransition(StatusTrialing, StatusActive, EventCheckoutCompleted, statemachine.WithGuard(activatable)),
	statemachine.WithTransition(StatusPastDue, StatusActive, EventCheckoutCompleted, statemachine.WithGuard(activatable)),
	statemachine.WithTransition(StatusPaymentFailed, StatusActive, EventCheckoutCompleted, statemachine.WithGuard(activatable)),
	statemachine.WithTransition(StatusTrialExpired, StatusActive, EventCheckoutCompleted, statemachine.WithGuard(activatable)),
	statemachine.WithTransition(StatusCanceled, StatusActive, EventCheckoutCompleted, statemachine.WithGuard(activatable)),

	// A paid invoice activates, recovers or renews.
	statemachine.WithTransition(StatusTrialing, StatusActive, EventInvoicePaymentSucceeded, statemachine.WithGuard(activatable)),
	statemachine.WithTransition(StatusActive, StatusActive, EventInvoicePaymentSucceeded, statemachine.WithGuard(activatable)),
	statemachine.WithTransition(StatusPastDue, StatusActive, EventInvoicePaymentSucceeded, statemachine.WithGuard(activatable)),
	statemachine.WithTransition(StatusPaymentFailed, StatusActive, EventInvoicePaymentSucceeded, statemachine.WithGuard(activatable)),
	statemachine.WithTransition(StatusTrialExpired, StatusActive, EventInvoicePaymentSucceeded, statemachine.WithGuard(activatable)),
	statemachine.WithTransition(StatusCanceled, StatusActive, EventInvoicePaymentSucceeded, statemachine.WithGuard(activatable)),

	statemachine.WithTransition(StatusTrialing, StatusPaymentFailed, EventInvoicePaymentFailed),
	statemachine.WithTransition(StatusActive, StatusPaymentFailed, EventInvoicePaymentFailed),
	statemachine.WithTransition(StatusPastDue, StatusPaymentFailed, EventInvoicePaymentFailed),

	statemachine.WithTransition(StatusActive, StatusActive, EventSubscriptionUpdated),

	// Deletion of a never-paid trial expires it; anything else cancels.
	// Declaration order matters: the guarded candidate is tried first.
	statemachine.WithTransitions(deletions()...),
)

// deletions declares EventSubscriptionDeleted from every status.
func deletions() []statemachine.Transition {
	from := []Status{StatusTrialing, StatusActive, StatusPastDue, StatusPaymentFailed, StatusTrialExpired, StatusCanceled}
	out := make([]statemachine.Transition, 0, 2*len(from))
	for _, s := range from {
		out = append(out,
			statemachine.Transition{From: s, To: StatusTrialExpired, Event: EventSubscriptionDeleted, Guards: []statemachine.Guard{trialCanceled}},
			statemachine.Transition{From: s, To: StatusCanceled, Event: EventSubscriptionDeleted},
		)
	}
	return out
}

func activatable(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
	sub, ok := data.(*ProviderSubscription)
	return ok && sub.Status.Activatable()
}

func trialCanceled(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
	sub, ok := data.(*ProviderSubscription)
	return ok && sub.TrialEnd != nil && sub.Status == ProviderStatusCanceled
}

// advance looks up where typ moves rec given the fresh provider state.
// When ok is false the event must not touch the record and outcome says why.
func advance(ctx context.Context, log *slog.Logger, rec *Record, typ EventType, sub *ProviderSubscription) (to Status, outcome Outcome, ok bool) {
	target, err := lifecycle.Target(ctx, rec.Status, typ, sub)
	switch {
	case err == nil:
		return target.(Status), "", true
	case statemachine.IsTransitionRejectedError(err):
		outcome, _ = skip(ctx, log, "provider status does not allow transition",
			logger.UserID(rec.UserID),
			logger.Status(rec.Status),
			slog.String("provider_status", string(sub.Status)),
		)
		return "", outcome, false
	default:
		log.InfoContext(ctx, "subscription record unchanged",
			logger.UserID(rec.UserID),
			logger.Status(rec.Status),
		)
		return "", OutcomeUnchanged, false
	}
}
