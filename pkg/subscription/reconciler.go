package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingsync/pkg/logger"
)

// Outcome describes what processing an event did.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"   // A conditional write changed the record
	OutcomeUnchanged Outcome = "unchanged" // The record already reflected the event
	OutcomeSkipped   Outcome = "skipped"   // A guard rejected the event or it could not be resolved
	OutcomeIgnored   Outcome = "ignored"   // Informational or unrecognized event type
	OutcomeDuplicate Outcome = "duplicate" // Already applied according to the event ledger
)

// Reconciler applies verified provider events to subscription records.
//
// Every event is treated as a hint: the authoritative subscription is
// re-fetched from the provider before any write, and each write is a single
// conditional update. Redelivered or reordered events therefore converge on
// the same final state.
type Reconciler struct {
	store    Store
	gateway  Gateway
	cfg      Config
	ledger   EventLedger
	notifier Notifier
	now      func() time.Time
	log      *slog.Logger
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithReconcilerLogger sets the reconciler logger.
func WithReconcilerLogger(log *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if log != nil {
			r.log = log
		}
	}
}

// WithReconcilerClock overrides the time source.
func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// WithEventLedger enables fast-path deduplication by event ID.
func WithEventLedger(l EventLedger) ReconcilerOption {
	return func(r *Reconciler) {
		r.ledger = l
	}
}

// WithNotifier sets the receiver of informational notices.
func WithNotifier(n Notifier) ReconcilerOption {
	return func(r *Reconciler) {
		if n != nil {
			r.notifier = n
		}
	}
}

// NewReconciler creates a Reconciler.
// Panics if store or gateway is nil to fail fast during initialization.
func NewReconciler(store Store, gateway Gateway, cfg Config, opts ...ReconcilerOption) *Reconciler {
	if store == nil {
		panic("subscription: Store is required")
	}
	if gateway == nil {
		panic("subscription: Gateway is required")
	}

	r := &Reconciler{
		store:   store,
		gateway: gateway,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.notifier == nil {
		r.notifier = NewLogNotifier(r.log)
	}
	return r
}

// ProcessWebhook verifies a raw webhook delivery and applies it.
// Verification failures match ErrClassVerification and must not be retried;
// any other error means the delivery should be retried.
func (r *Reconciler) ProcessWebhook(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	evt, err := r.gateway.VerifyAndParseEvent(ctx, payload, signature)
	if err != nil {
		r.log.WarnContext(ctx, "webhook verification failed",
			logger.Component("reconciler"),
			logger.Error(err),
		)
		if errors.Is(err, ErrClassVerification) {
			return "", err
		}
		return "", ErrWebhookVerification.Wrap(err)
	}
	return r.Handle(ctx, evt)
}

// Handle applies a verified event.
func (r *Reconciler) Handle(ctx context.Context, evt *Event) (Outcome, error) {
	log := r.log.With(
		logger.Component("reconciler"),
		logger.EventID(evt.ID),
		logger.EventType(string(evt.Type)),
	)

	if r.seen(ctx, log, evt.ID) {
		log.InfoContext(ctx, "event already processed")
		return OutcomeDuplicate, nil
	}

	var (
		outcome Outcome
		err     error
	)
	switch evt.Type {
	case EventCheckoutCompleted:
		outcome, err = r.checkoutCompleted(ctx, log, evt)
	case EventInvoicePaymentSucceeded:
		outcome, err = r.invoicePaymentSucceeded(ctx, log, evt)
	case EventInvoicePaymentFailed:
		outcome, err = r.invoicePaymentFailed(ctx, log, evt)
	case EventSubscriptionUpdated:
		outcome, err = r.subscriptionUpdated(ctx, log, evt)
	case EventSubscriptionDeleted:
		outcome, err = r.subscriptionDeleted(ctx, log, evt)
	case EventTrialWillEnd:
		outcome, err = r.trialWillEnd(ctx, log, evt)
	default:
		log.InfoContext(ctx, "unhandled event type")
		outcome = OutcomeIgnored
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to process event", logger.Error(err))
		return "", err
	}

	r.markProcessed(ctx, log, evt.ID)
	return outcome, nil
}

func (r *Reconciler) checkoutCompleted(ctx context.Context, log *slog.Logger, evt *Event) (Outcome, error) {
	co := evt.Checkout
	if co == nil || co.SubscriptionID == "" {
		return skip(ctx, log, "checkout session has no subscription")
	}

	sub, err := r.gateway.RetrieveSubscription(ctx, co.SubscriptionID)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve subscription: %w", err)
	}

	rec, err := r.resolve(ctx, sub, co.Metadata[MetadataUserID])
	if err != nil || rec == nil {
		return r.unresolved(ctx, log, err)
	}
	to, outcome, ok := advance(ctx, log, rec, evt.Type, sub)
	if !ok {
		return outcome, nil
	}

	b, err := r.billing(sub)
	if err != nil {
		return "", err
	}

	applied, err := r.store.Activate(ctx, rec.UserID, b, r.now())
	return r.written(ctx, log, rec, to, applied, err)
}

func (r *Reconciler) invoicePaymentSucceeded(ctx context.Context, log *slog.Logger, evt *Event) (Outcome, error) {
	inv := evt.Invoice
	switch {
	case inv == nil || inv.SubscriptionID == "":
		return skip(ctx, log, "invoice has no subscription")
	case inv.AmountPaid <= 0:
		return skip(ctx, log, "zero amount invoice")
	case !inv.BillingReason.Activates():
		return skip(ctx, log, "billing reason does not activate", slog.String("billing_reason", string(inv.BillingReason)))
	}

	sub, err := r.gateway.RetrieveSubscription(ctx, inv.SubscriptionID)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve subscription: %w", err)
	}
	if sub.Status == ProviderStatusTrialing {
		return skip(ctx, log, "subscription is trialing")
	}

	rec, err := r.resolve(ctx, sub, inv.Metadata[MetadataUserID])
	if err != nil || rec == nil {
		return r.unresolved(ctx, log, err)
	}
	to, outcome, ok := advance(ctx, log, rec, evt.Type, sub)
	if !ok {
		return outcome, nil
	}

	b, err := r.billing(sub)
	if err != nil {
		return "", err
	}

	applied, err := r.store.Activate(ctx, rec.UserID, b, r.now())
	if err != nil || applied {
		return r.written(ctx, log, rec, to, applied, err)
	}

	// Already active: refresh the billing cycle on renewal.
	applied, err = r.store.Renew(ctx, rec.UserID, b)
	return r.written(ctx, log, rec, to, applied, err)
}

func (r *Reconciler) invoicePaymentFailed(ctx context.Context, log *slog.Logger, evt *Event) (Outcome, error) {
	inv := evt.Invoice
	if inv == nil || inv.SubscriptionID == "" {
		return skip(ctx, log, "invoice has no subscription")
	}

	sub, err := r.gateway.RetrieveSubscription(ctx, inv.SubscriptionID)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve subscription: %w", err)
	}

	rec, err := r.resolve(ctx, sub, inv.Metadata[MetadataUserID])
	if err != nil || rec == nil {
		return r.unresolved(ctx, log, err)
	}
	to, outcome, ok := advance(ctx, log, rec, evt.Type, sub)
	if !ok {
		return outcome, nil
	}

	applied, err := r.store.MarkPaymentFailed(ctx, rec.UserID, sub.ID)
	return r.written(ctx, log, rec, to, applied, err)
}

func (r *Reconciler) subscriptionUpdated(ctx context.Context, log *slog.Logger, evt *Event) (Outcome, error) {
	if evt.Subscription == nil || evt.Subscription.ID == "" {
		return skip(ctx, log, "event has no subscription")
	}

	sub, err := r.gateway.RetrieveSubscription(ctx, evt.Subscription.ID)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve subscription: %w", err)
	}
	if sub.Status == ProviderStatusTrialing {
		return skip(ctx, log, "subscription is trialing")
	}
	// Plan changes on past_due and other non-active subscriptions are dropped.
	if sub.Status != ProviderStatusActive {
		return skip(ctx, log, "subscription is not active", slog.String("provider_status", string(sub.Status)))
	}

	rec, err := r.resolve(ctx, sub, evt.Subscription.UserIDHint())
	if err != nil || rec == nil {
		return r.unresolved(ctx, log, err)
	}
	to, outcome, ok := advance(ctx, log, rec, evt.Type, sub)
	if !ok {
		return outcome, nil
	}

	plan, ok := r.cfg.PlanForPrice(sub.PriceID)
	if !ok {
		return skip(ctx, log, "price does not map to a plan", slog.String("price_id", sub.PriceID))
	}
	b := billingFrom(sub, plan)
	if !b.PlanDiffers(rec) {
		log.InfoContext(ctx, "plan unchanged", logger.UserID(rec.UserID))
		return OutcomeUnchanged, nil
	}

	applied, err := r.store.SwitchPlan(ctx, rec.UserID, b)
	return r.written(ctx, log, rec, to, applied, err)
}

func (r *Reconciler) subscriptionDeleted(ctx context.Context, log *slog.Logger, evt *Event) (Outcome, error) {
	if evt.Subscription == nil || evt.Subscription.ID == "" {
		return skip(ctx, log, "event has no subscription")
	}

	sub, err := r.gateway.RetrieveSubscription(ctx, evt.Subscription.ID)
	switch {
	case errors.Is(err, ErrClassProviderRejected):
		// A deleted subscription the provider no longer serves: the payload
		// is the final state.
		sub = evt.Subscription
	case err != nil:
		return "", fmt.Errorf("failed to retrieve subscription: %w", err)
	}

	rec, err := r.resolve(ctx, sub, evt.Subscription.UserIDHint())
	if err != nil || rec == nil {
		return r.unresolved(ctx, log, err)
	}
	to, outcome, ok := advance(ctx, log, rec, evt.Type, sub)
	if !ok {
		return outcome, nil
	}

	var canceledAt *time.Time
	if to == StatusCanceled {
		now := r.now()
		canceledAt = &now
	}
	applied, err := r.store.Terminate(ctx, rec.UserID, sub.ID, to, canceledAt)
	return r.written(ctx, log, rec, to, applied, err)
}

func (r *Reconciler) trialWillEnd(ctx context.Context, log *slog.Logger, evt *Event) (Outcome, error) {
	if evt.Subscription == nil || evt.Subscription.ID == "" {
		return skip(ctx, log, "event has no subscription")
	}

	sub, err := r.gateway.RetrieveSubscription(ctx, evt.Subscription.ID)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve subscription: %w", err)
	}

	rec, err := r.resolve(ctx, sub, evt.Subscription.UserIDHint())
	if err != nil || rec == nil {
		return r.unresolved(ctx, log, err)
	}
	// Notices only go to a trial the record still tracks: a superseded trial
	// subscription or an upgraded record gets nothing.
	if rec.ProviderSubscriptionID != sub.ID || rec.Status != StatusTrialing {
		return skip(ctx, log, "trial is no longer current",
			logger.UserID(rec.UserID),
			logger.Status(rec.Status),
		)
	}

	notice := TrialNotice{UserID: rec.UserID, Email: sub.CustomerEmail}
	switch {
	case sub.TrialEnd != nil:
		notice.TrialEndsAt = *sub.TrialEnd
	case rec.TrialEndsAt != nil:
		notice.TrialEndsAt = *rec.TrialEndsAt
	}
	if err := r.notifier.TrialWillEnd(ctx, notice); err != nil {
		log.WarnContext(ctx, "failed to send trial notice", logger.UserID(rec.UserID), logger.Error(err))
	}
	return OutcomeIgnored, nil
}

// resolve finds the record an event refers to. The userId metadata on the
// fresh subscription wins, then the hint from the event payload, then the
// subscription ID itself. Returns nil without error when unresolvable.
func (r *Reconciler) resolve(ctx context.Context, sub *ProviderSubscription, hint string) (*Record, error) {
	if v := sub.UserIDHint(); v != "" {
		hint = v
	}

	var (
		rec *Record
		err error
	)
	if hint != "" {
		userID, perr := uuid.Parse(hint)
		if perr != nil {
			return nil, nil
		}
		rec, err = r.store.FindByUserID(ctx, userID)
	} else {
		rec, err = r.store.FindByProviderSubscriptionID(ctx, sub.ID)
	}
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription record: %w", err)
	}
	return rec, nil
}

func (r *Reconciler) unresolved(ctx context.Context, log *slog.Logger, err error) (Outcome, error) {
	if err != nil {
		return "", err
	}
	return skip(ctx, log, "no matching subscription record")
}

// billing builds the snapshot for an activation. An active record must have
// a plan and a period end, so an unknown price or a missing period is an
// error worth retrying once fixed.
func (r *Reconciler) billing(sub *ProviderSubscription) (Billing, error) {
	plan, ok := r.cfg.PlanForPrice(sub.PriceID)
	if !ok {
		return Billing{}, fmt.Errorf("%w: %q", ErrUnknownPrice, sub.PriceID)
	}
	if sub.CurrentPeriodEnd.IsZero() {
		return Billing{}, fmt.Errorf("%w: %q", ErrMissingPeriod, sub.ID)
	}
	return billingFrom(sub, plan), nil
}

func billingFrom(sub *ProviderSubscription, plan Plan) Billing {
	return Billing{
		ProviderSubscriptionID: sub.ID,
		ProviderPriceID:        sub.PriceID,
		Plan:                   plan,
		CurrentPeriodStart:     sub.CurrentPeriodStart,
		CurrentPeriodEnd:       sub.CurrentPeriodEnd,
	}
}

func (r *Reconciler) written(ctx context.Context, log *slog.Logger, rec *Record, to Status, applied bool, err error) (Outcome, error) {
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return skip(ctx, log, "no matching subscription record")
	case err != nil:
		return "", fmt.Errorf("failed to update subscription record: %w", err)
	case !applied:
		log.InfoContext(ctx, "subscription record unchanged",
			logger.UserID(rec.UserID),
			logger.Status(rec.Status),
		)
		return OutcomeUnchanged, nil
	}
	log.InfoContext(ctx, "subscription record updated",
		logger.UserID(rec.UserID),
		slog.String("from", rec.Status.String()),
		slog.String("to", to.String()),
	)
	return OutcomeApplied, nil
}

func skip(ctx context.Context, log *slog.Logger, reason string, attrs ...any) (Outcome, error) {
	log.InfoContext(ctx, "event skipped", append([]any{slog.String("reason", reason)}, attrs...)...)
	return OutcomeSkipped, nil
}

func (r *Reconciler) seen(ctx context.Context, log *slog.Logger, eventID string) bool {
	if r.ledger == nil || eventID == "" {
		return false
	}
	ok, err := r.ledger.Processed(ctx, eventID)
	if err != nil {
		log.WarnContext(ctx, "event ledger lookup failed", logger.Error(err))
		return false
	}
	return ok
}

func (r *Reconciler) markProcessed(ctx context.Context, log *slog.Logger, eventID string) {
	if r.ledger == nil || eventID == "" {
		return
	}
	if err := r.ledger.MarkProcessed(ctx, eventID, r.cfg.EventLedgerTTL); err != nil {
		log.WarnContext(ctx, "failed to record processed event", logger.Error(err))
	}
}
