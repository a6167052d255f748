// Package subscription keeps a local subscription record per user in sync with
// an external payment provider.
//
// The provider is the source of truth for payment and billing-cycle events.
// The package exposes four cooperating pieces:
//
//   - Store persists one Record per user and mutates it only through
//     conditional single-document writes.
//   - Gateway abstracts the provider API (customers, subscriptions, checkout
//     and portal sessions, webhook verification). StripeGateway is the
//     production implementation and BreakerGateway wraps any Gateway with a
//     circuit breaker.
//   - Service runs user-initiated commands: registration, upgrade, plan
//     switch, billing portal and status.
//   - Reconciler applies verified provider events to the Record. Events may
//     arrive duplicated or out of order; every write is conditioned on the
//     stored state so redelivery converges instead of bouncing.
//
// Entitlement is computed by CheckEntitlement, a pure function of a Record and
// the current time.
//
// Basic wiring:
//
//	gw, _ := subscription.NewStripeGateway(stripeCfg)
//	svc := subscription.NewService(store, gw, cfg, subscription.WithLogger(log))
//	rec := subscription.NewReconciler(store, gw, cfg, subscription.WithReconcilerLogger(log))
//
//	// webhook endpoint
//	outcome, err := rec.ProcessWebhook(ctx, body, r.Header.Get("Stripe-Signature"))
package subscription
