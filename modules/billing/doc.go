// Package billing mounts the subscription HTTP API.
//
//	POST /webhook                          provider events, verified by signature
//	POST /subscription/upgrade             {plan, callbackUrl} -> {url}
//	POST /subscription/switch-plan         {newPlan} -> {success, message}
//	POST /subscription/billing-portal      {callbackUrl} -> {url}
//	GET  /subscription/status              subscription view with plan catalog
//	GET  /subscription/entitlement         {entitled, reason, message}
//
// Subscription routes require an authenticated identity, by default the
// claims placed in the request context by pkg/jwt. RequireEntitlement gates
// other routes on the subscription guard.
package billing
