package subscription

import (
	"context"
	"time"
)

// Gateway is the narrow surface of the payment provider used by Service and
// Reconciler. Implementations must classify failures as *ProviderError so
// transient errors can be told apart from rejected requests.
type Gateway interface {
	// CreateCustomer creates a provider customer and returns its ID.
	CreateCustomer(ctx context.Context, email, name string) (string, error)

	// CreateSubscription creates a trialing subscription that cancels itself
	// when the trial ends without a payment method.
	CreateSubscription(ctx context.Context, req SubscriptionRequest) (*ProviderSubscription, error)

	// RetrieveSubscription fetches the authoritative subscription by ID.
	RetrieveSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error)

	// UpdateSubscriptionItem swaps the price of a subscription item with proration.
	UpdateSubscriptionItem(ctx context.Context, req ItemUpdateRequest) (*ProviderSubscription, error)

	// CreateCheckoutSession creates a hosted checkout for a subscription price.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	// CreatePortalSession creates a hosted billing portal session.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error)

	// VerifyAndParseEvent validates the webhook signature and normalizes the
	// payload. Returns an error matching ErrClassVerification on bad input.
	VerifyAndParseEvent(ctx context.Context, payload []byte, signature string) (*Event, error)
}

// Metadata keys attached to provider objects for correlation.
const (
	MetadataUserID = "userId"
	MetadataPlan   = "plan"
)

// ProviderStatus is the provider-side subscription status.
type ProviderStatus string

const (
	ProviderStatusTrialing          ProviderStatus = "trialing"
	ProviderStatusActive            ProviderStatus = "active"
	ProviderStatusPastDue           ProviderStatus = "past_due"
	ProviderStatusCanceled          ProviderStatus = "canceled"
	ProviderStatusUnpaid            ProviderStatus = "unpaid"
	ProviderStatusIncomplete        ProviderStatus = "incomplete"
	ProviderStatusIncompleteExpired ProviderStatus = "incomplete_expired"
	ProviderStatusPaused            ProviderStatus = "paused"
)

// Activatable reports whether a subscription in status s may grant paid
// access. Ended, paused and never-paid subscriptions do not.
func (s ProviderStatus) Activatable() bool {
	switch s {
	case ProviderStatusActive, ProviderStatusPastDue, ProviderStatusTrialing:
		return true
	default:
		return false
	}
}

// SubscriptionRequest describes a trial subscription to create.
type SubscriptionRequest struct {
	CustomerID string
	PriceID    string
	TrialEnd   time.Time
	Metadata   map[string]string
}

// ItemUpdateRequest describes a plan switch on an existing subscription.
type ItemUpdateRequest struct {
	SubscriptionID string
	ItemID         string
	PriceID        string
	Metadata       map[string]string
}

// CheckoutRequest contains data needed to create a checkout session.
type CheckoutRequest struct {
	CustomerID string
	PriceID    string
	SuccessURL string // Redirect after successful payment
	CancelURL  string // Redirect if customer cancels
	Metadata   map[string]string
}

// CheckoutSession is a created hosted checkout.
type CheckoutSession struct {
	ID  string
	URL string
}

// PortalSession is a created billing portal session.
type PortalSession struct {
	ID  string
	URL string
}

// ProviderSubscription is the normalized provider-side subscription.
type ProviderSubscription struct {
	ID                 string
	CustomerID         string
	CustomerEmail      string // Set when the provider returns an expanded customer
	Status             ProviderStatus
	ItemID             string // First subscription item
	PriceID            string // Price of the first subscription item
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	TrialStart         *time.Time
	TrialEnd           *time.Time
	CanceledAt         *time.Time
	Metadata           map[string]string
}

// UserIDHint returns the userId metadata tag, if present.
func (s *ProviderSubscription) UserIDHint() string {
	return s.Metadata[MetadataUserID]
}
