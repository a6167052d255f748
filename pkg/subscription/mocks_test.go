package subscription_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/billingsync/pkg/subscription"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	args := m.Called(ctx, email, name)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) CreateSubscription(ctx context.Context, req subscription.SubscriptionRequest) (*subscription.ProviderSubscription, error) {
	args := m.Called(ctx, req)
	if sub := args.Get(0); sub != nil {
		return sub.(*subscription.ProviderSubscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) RetrieveSubscription(ctx context.Context, subscriptionID string) (*subscription.ProviderSubscription, error) {
	args := m.Called(ctx, subscriptionID)
	if sub := args.Get(0); sub != nil {
		return sub.(*subscription.ProviderSubscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) UpdateSubscriptionItem(ctx context.Context, req subscription.ItemUpdateRequest) (*subscription.ProviderSubscription, error) {
	args := m.Called(ctx, req)
	if sub := args.Get(0); sub != nil {
		return sub.(*subscription.ProviderSubscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, req subscription.CheckoutRequest) (*subscription.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if s := args.Get(0); s != nil {
		return s.(*subscription.CheckoutSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*subscription.PortalSession, error) {
	args := m.Called(ctx, customerID, returnURL)
	if s := args.Get(0); s != nil {
		return s.(*subscription.PortalSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) VerifyAndParseEvent(ctx context.Context, payload []byte, signature string) (*subscription.Event, error) {
	args := m.Called(ctx, payload, signature)
	if evt := args.Get(0); evt != nil {
		return evt.(*subscription.Event), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Processed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *mockLedger) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	args := m.Called(ctx, eventID, ttl)
	return args.Error(0)
}
