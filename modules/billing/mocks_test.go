package billing_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/billingsync/pkg/subscription"
)

type mockCommands struct {
	mock.Mock
}

func (m *mockCommands) Upgrade(ctx context.Context, userID uuid.UUID, req subscription.UpgradeRequest) (*subscription.CheckoutSession, error) {
	args := m.Called(ctx, userID, req)
	s, _ := args.Get(0).(*subscription.CheckoutSession)
	return s, args.Error(1)
}

func (m *mockCommands) SwitchPlan(ctx context.Context, userID uuid.UUID, plan subscription.Plan) (*subscription.SwitchResult, error) {
	args := m.Called(ctx, userID, plan)
	r, _ := args.Get(0).(*subscription.SwitchResult)
	return r, args.Error(1)
}

func (m *mockCommands) BillingPortal(ctx context.Context, userID uuid.UUID, returnURL string) (*subscription.PortalSession, error) {
	args := m.Called(ctx, userID, returnURL)
	s, _ := args.Get(0).(*subscription.PortalSession)
	return s, args.Error(1)
}

func (m *mockCommands) Status(ctx context.Context, userID uuid.UUID) (*subscription.View, error) {
	args := m.Called(ctx, userID)
	v, _ := args.Get(0).(*subscription.View)
	return v, args.Error(1)
}

func (m *mockCommands) Entitlement(ctx context.Context, userID uuid.UUID) (subscription.Entitlement, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(subscription.Entitlement), args.Error(1)
}

type mockWebhooks struct {
	mock.Mock
}

func (m *mockWebhooks) ProcessWebhook(ctx context.Context, payload []byte, signature string) (subscription.Outcome, error) {
	args := m.Called(ctx, payload, signature)
	return args.Get(0).(subscription.Outcome), args.Error(1)
}
