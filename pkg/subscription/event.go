package subscription

import "time"

// EventType is the provider event type tag.
type EventType string

const (
	EventCheckoutCompleted       EventType = "checkout.session.completed"
	EventInvoicePaymentSucceeded EventType = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    EventType = "invoice.payment_failed"
	EventSubscriptionUpdated     EventType = "customer.subscription.updated"
	EventSubscriptionDeleted     EventType = "customer.subscription.deleted"
	EventTrialWillEnd            EventType = "customer.subscription.trial_will_end"
)

// Name implements statemachine.Event.
func (t EventType) Name() string {
	return string(t)
}

// BillingReason explains why an invoice was created.
type BillingReason string

const (
	BillingReasonCreate BillingReason = "subscription_create"
	BillingReasonCycle  BillingReason = "subscription_cycle"
	BillingReasonManual BillingReason = "manual"
	BillingReasonUpdate BillingReason = "subscription_update"
)

// Activates reports whether an invoice with this reason may activate a
// subscription. Proration and threshold invoices never do.
func (r BillingReason) Activates() bool {
	switch r {
	case BillingReasonCreate, BillingReasonCycle, BillingReasonManual:
		return true
	}
	return false
}

// Event is a verified, normalized provider event. Exactly one of the payload
// fields is set for recognized types; none is set for unrecognized ones.
type Event struct {
	ID        string
	Type      EventType
	CreatedAt time.Time

	Checkout     *CompletedCheckout
	Invoice      *Invoice
	Subscription *ProviderSubscription
}

// CompletedCheckout is the payload of checkout.session.completed.
type CompletedCheckout struct {
	ID             string
	SubscriptionID string
	CustomerID     string
	Metadata       map[string]string
}

// Invoice is the payload of invoice payment events.
type Invoice struct {
	ID             string
	SubscriptionID string
	CustomerID     string
	AmountPaid     int64
	BillingReason  BillingReason
	Metadata       map[string]string
}

// SubscriptionID returns the provider subscription the event refers to.
func (e *Event) SubscriptionID() string {
	switch {
	case e.Checkout != nil:
		return e.Checkout.SubscriptionID
	case e.Invoice != nil:
		return e.Invoice.SubscriptionID
	case e.Subscription != nil:
		return e.Subscription.ID
	}
	return ""
}

// UserIDHint returns the userId metadata embedded in the event payload.
func (e *Event) UserIDHint() string {
	switch {
	case e.Checkout != nil:
		return e.Checkout.Metadata[MetadataUserID]
	case e.Invoice != nil:
		return e.Invoice.Metadata[MetadataUserID]
	case e.Subscription != nil:
		return e.Subscription.UserIDHint()
	}
	return ""
}
