package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

// portalNotConfigured is the provider message returned when no billing
// portal configuration exists for the account.
const portalNotConfigured = "No configuration provided"

// StripeGateway implements Gateway on top of the Stripe API.
// The client is constructed once and shared; it carries its own HTTP
// timeout and network retry budget.
type StripeGateway struct {
	api       *client.API
	secret    string
	tolerance time.Duration
}

// StripeOption configures a StripeGateway.
type StripeOption func(*stripe.BackendConfig)

// WithStripeURL points the gateway at a different API base URL.
// Used to run against stripe-mock or a test server.
func WithStripeURL(url string) StripeOption {
	return func(c *stripe.BackendConfig) {
		if url != "" {
			c.URL = stripe.String(url)
		}
	}
}

// WithStripeHTTPClient replaces the HTTP client used for API calls.
func WithStripeHTTPClient(hc *http.Client) StripeOption {
	return func(c *stripe.BackendConfig) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// NewStripeGateway creates a Stripe gateway from config.
func NewStripeGateway(cfg StripeConfig, opts ...StripeOption) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingSecretKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	for _, opt := range opts {
		opt(backendCfg)
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	}

	tolerance := cfg.WebhookTolerance
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}

	return &StripeGateway{
		api:       client.New(cfg.SecretKey, backends),
		secret:    cfg.WebhookSecret,
		tolerance: tolerance,
	}, nil
}

// CreateCustomer implements Gateway.
func (g *StripeGateway) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	if name != "" {
		params.Name = stripe.String(name)
	}
	params.Context = ctx

	c, err := g.api.Customers.New(params)
	if err != nil {
		return "", classifyStripeError("create_customer", err)
	}
	return c.ID, nil
}

// CreateSubscription implements Gateway.
func (g *StripeGateway) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*ProviderSubscription, error) {
	if req.PriceID == "" {
		return nil, ErrMissingPriceID
	}

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(req.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(req.PriceID)},
		},
		TrialEnd: stripe.Int64(req.TrialEnd.Unix()),
		TrialSettings: &stripe.SubscriptionTrialSettingsParams{
			EndBehavior: &stripe.SubscriptionTrialSettingsEndBehaviorParams{
				MissingPaymentMethod: stripe.String("cancel"),
			},
		},
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	sub, err := g.api.Subscriptions.New(params)
	if err != nil {
		return nil, classifyStripeError("create_subscription", err)
	}
	return normalizeSubscription(sub), nil
}

// RetrieveSubscription implements Gateway. The customer is expanded so
// notifications can reach the billing email without another round trip.
func (g *StripeGateway) RetrieveSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error) {
	params := &stripe.SubscriptionParams{}
	params.AddExpand("customer")
	params.Context = ctx

	sub, err := g.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, classifyStripeError("retrieve_subscription", err)
	}
	return normalizeSubscription(sub), nil
}

// UpdateSubscriptionItem implements Gateway.
func (g *StripeGateway) UpdateSubscriptionItem(ctx context.Context, req ItemUpdateRequest) (*ProviderSubscription, error) {
	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(req.ItemID),
				Price: stripe.String(req.PriceID),
			},
		},
		ProrationBehavior: stripe.String("create_prorations"),
		PaymentBehavior:   stripe.String("error_if_incomplete"),
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	sub, err := g.api.Subscriptions.Update(req.SubscriptionID, params)
	if err != nil {
		return nil, classifyStripeError("update_subscription_item", err)
	}
	return normalizeSubscription(sub), nil
}

// CreateCheckoutSession implements Gateway.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.PriceID == "" {
		return nil, ErrMissingPriceID
	}

	params := &stripe.CheckoutSessionParams{
		Mode:                     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:                 stripe.String(req.CustomerID),
		SuccessURL:               stripe.String(req.SuccessURL),
		CancelURL:                stripe.String(req.CancelURL),
		PaymentMethodTypes:       stripe.StringSlice([]string{"card"}),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionAuto)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: req.Metadata,
		},
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, classifyStripeError("create_checkout_session", err)
	}
	if s.URL == "" {
		return nil, &ProviderError{Op: "create_checkout_session", Class: ErrClassProviderRejected, Err: errors.New("no checkout URL returned")}
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// CreatePortalSession implements Gateway.
func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	s, err := g.api.BillingPortalSessions.New(params)
	if err != nil {
		return nil, classifyStripeError("create_portal_session", err)
	}
	return &PortalSession{ID: s.ID, URL: s.URL}, nil
}

// VerifyAndParseEvent implements Gateway.
func (g *StripeGateway) VerifyAndParseEvent(ctx context.Context, payload []byte, signature string) (*Event, error) {
	if len(payload) == 0 || signature == "" {
		return nil, ErrWebhookVerification
	}

	// API version mismatch is ignored: the payload is normalized below and
	// every relevant object is re-fetched before it is applied.
	evt, err := webhook.ConstructEventWithOptions(payload, signature, g.secret, webhook.ConstructEventOptions{
		Tolerance:                g.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, ErrWebhookVerification.Wrap(err)
	}
	return normalizeEvent(evt)
}

// ParseEvent normalizes a raw event payload without signature verification.
// It exists for replaying stored events from trusted sources only.
func (g *StripeGateway) ParseEvent(payload []byte) (*Event, error) {
	var evt stripe.Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	return normalizeEvent(evt)
}

func normalizeEvent(evt stripe.Event) (*Event, error) {
	out := &Event{
		ID:        evt.ID,
		Type:      EventType(evt.Type),
		CreatedAt: unixTime(evt.Created),
	}
	if evt.Data == nil {
		return out, nil
	}

	switch out.Type {
	case EventCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("failed to decode checkout session: %w", err)
		}
		out.Checkout = &CompletedCheckout{ID: s.ID, Metadata: s.Metadata}
		if s.Subscription != nil {
			out.Checkout.SubscriptionID = s.Subscription.ID
		}
		if s.Customer != nil {
			out.Checkout.CustomerID = s.Customer.ID
		}

	case EventInvoicePaymentSucceeded, EventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(evt.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("failed to decode invoice: %w", err)
		}
		out.Invoice = &Invoice{
			ID:            inv.ID,
			AmountPaid:    inv.AmountPaid,
			BillingReason: BillingReason(inv.BillingReason),
			Metadata:      inv.Metadata,
		}
		if inv.Subscription != nil {
			out.Invoice.SubscriptionID = inv.Subscription.ID
			if out.Invoice.Metadata[MetadataUserID] == "" && inv.Subscription.Metadata[MetadataUserID] != "" {
				out.Invoice.Metadata = inv.Subscription.Metadata
			}
		}
		if inv.Customer != nil {
			out.Invoice.CustomerID = inv.Customer.ID
		}

	case EventSubscriptionUpdated, EventSubscriptionDeleted, EventTrialWillEnd:
		var sub stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("failed to decode subscription: %w", err)
		}
		out.Subscription = normalizeSubscription(&sub)
	}

	return out, nil
}

func normalizeSubscription(sub *stripe.Subscription) *ProviderSubscription {
	out := &ProviderSubscription{
		ID:                 sub.ID,
		Status:             ProviderStatus(sub.Status),
		CurrentPeriodStart: unixTime(sub.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTime(sub.CurrentPeriodEnd),
		TrialStart:         unixTimePtr(sub.TrialStart),
		TrialEnd:           unixTimePtr(sub.TrialEnd),
		CanceledAt:         unixTimePtr(sub.CanceledAt),
		Metadata:           sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
		out.CustomerEmail = sub.Customer.Email
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		out.ItemID = item.ID
		if item.Price != nil {
			out.PriceID = item.Price.ID
		}
	}
	return out
}

// classifyStripeError maps SDK failures onto provider error classes.
// Network failures, rate limits, lock conflicts and 5xx are transient;
// everything else the API answered with is a rejection.
func classifyStripeError(op string, err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return &ProviderError{Op: op, Class: ErrClassProviderTransient, Err: err}
	}

	class := ErrClassProviderRejected
	switch {
	case se.HTTPStatusCode >= http.StatusInternalServerError,
		se.HTTPStatusCode == http.StatusTooManyRequests,
		se.HTTPStatusCode == http.StatusConflict,
		se.HTTPStatusCode == 0:
		class = ErrClassProviderTransient
	case strings.Contains(se.Msg, portalNotConfigured):
		class = ErrClassConfiguration
	}
	return &ProviderError{Op: op, Class: class, Err: err}
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func unixTimePtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
