package subscription_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingsync/pkg/subscription"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func testConfig() subscription.Config {
	return subscription.Config{
		TrialDays:      14,
		MonthlyPriceID: "price_monthly",
		YearlyPriceID:  "price_yearly",
		EventLedgerTTL: time.Hour,
	}
}

func clock() time.Time { return testNow }

func newService(t *testing.T) (*subscription.Service, *subscription.MemoryStore, *mockGateway) {
	t.Helper()
	store := subscription.NewMemoryStore()
	gw := &mockGateway{}
	svc := subscription.NewService(store, gw, testConfig(), subscription.WithClock(clock))
	return svc, store, gw
}

func seed(t *testing.T, store subscription.Store, mutate func(r *subscription.Record)) *subscription.Record {
	t.Helper()
	trialStart := testNow.Add(-24 * time.Hour)
	trialEnd := trialStart.Add(14 * 24 * time.Hour)
	rec := &subscription.Record{
		UserID:                 uuid.New(),
		Status:                 subscription.StatusTrialing,
		ProviderCustomerID:     "cus_" + uuid.NewString(),
		ProviderSubscriptionID: "sub_" + uuid.NewString(),
		ProviderPriceID:        "price_monthly",
		TrialStartsAt:          &trialStart,
		TrialEndsAt:            &trialEnd,
		TrialDays:              14,
	}
	if mutate != nil {
		mutate(rec)
	}
	require.NoError(t, store.Create(context.Background(), rec))
	return rec
}

func activeRecord(plan subscription.Plan, priceID string) func(r *subscription.Record) {
	return func(r *subscription.Record) {
		start := testNow.Add(-24 * time.Hour)
		end := start.AddDate(0, 1, 0)
		r.Status = subscription.StatusActive
		r.Plan = plan
		r.ProviderPriceID = priceID
		r.CurrentPeriodStart = &start
		r.CurrentPeriodEnd = &end
	}
}

func transientErr(op string) error {
	return &subscription.ProviderError{Op: op, Class: subscription.ErrClassProviderTransient, Err: errors.New("connection reset")}
}

func TestNewService(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { subscription.NewService(nil, &mockGateway{}, testConfig()) })
	assert.Panics(t, func() { subscription.NewService(subscription.NewMemoryStore(), nil, testConfig()) })
}

func TestService_Provision(t *testing.T) {
	t.Parallel()

	t.Run("creates customer, trial subscription and record", func(t *testing.T) {
		t.Parallel()
		svc, store, gw := newService(t)
		userID := uuid.New()
		trialEnd := testNow.Add(14 * 24 * time.Hour)

		gw.On("CreateCustomer", mock.Anything, "jane@example.com", "Jane").Return("cus_1", nil).Once()
		gw.On("CreateSubscription", mock.Anything, subscription.SubscriptionRequest{
			CustomerID: "cus_1",
			PriceID:    "price_monthly",
			TrialEnd:   trialEnd,
			Metadata:   map[string]string{subscription.MetadataUserID: userID.String()},
		}).Return(&subscription.ProviderSubscription{
			ID:       "sub_1",
			Status:   subscription.ProviderStatusTrialing,
			PriceID:  "price_monthly",
			TrialEnd: &trialEnd,
		}, nil).Once()

		rec, err := svc.Provision(context.Background(), subscription.ProvisionRequest{
			UserID: userID, Email: "jane@example.com", Name: "Jane",
		})
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusTrialing, rec.Status)
		assert.Equal(t, subscription.PlanNone, rec.Plan)

		stored, err := store.FindByUserID(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, "cus_1", stored.ProviderCustomerID)
		assert.Equal(t, "sub_1", stored.ProviderSubscriptionID)
		assert.Equal(t, "price_monthly", stored.ProviderPriceID)
		assert.Equal(t, 14, stored.TrialDays)
		require.NotNil(t, stored.TrialStartsAt)
		assert.True(t, testNow.Equal(*stored.TrialStartsAt))
		require.NotNil(t, stored.TrialEndsAt)
		assert.True(t, trialEnd.Equal(*stored.TrialEndsAt))
		assert.Nil(t, stored.CurrentPeriodStart)
		assert.Nil(t, stored.CurrentPeriodEnd)

		gw.AssertExpectations(t)
	})

	t.Run("validates input before calling provider", func(t *testing.T) {
		t.Parallel()
		svc, _, gw := newService(t)

		_, err := svc.Provision(context.Background(), subscription.ProvisionRequest{Email: "a@example.com"})
		assert.ErrorIs(t, err, subscription.ErrMissingUserID)

		_, err = svc.Provision(context.Background(), subscription.ProvisionRequest{UserID: uuid.New()})
		assert.ErrorIs(t, err, subscription.ErrInvalidEmail)

		gw.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing monthly price", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig()
		cfg.MonthlyPriceID = ""
		svc := subscription.NewService(subscription.NewMemoryStore(), &mockGateway{}, cfg)

		_, err := svc.Provision(context.Background(), subscription.ProvisionRequest{UserID: uuid.New(), Email: "a@example.com"})
		assert.ErrorIs(t, err, subscription.ErrMissingPriceID)
	})

	t.Run("provider failure leaves no record", func(t *testing.T) {
		t.Parallel()
		svc, store, gw := newService(t)

		gw.On("CreateCustomer", mock.Anything, "a@example.com", "").Return("cus_1", nil).Once()
		gw.On("CreateSubscription", mock.Anything, mock.Anything).Return(nil, transientErr("create_subscription")).Once()

		_, err := svc.Provision(context.Background(), subscription.ProvisionRequest{UserID: uuid.New(), Email: "a@example.com"})
		require.Error(t, err)
		assert.True(t, subscription.IsTransient(err))
		assert.Equal(t, 0, store.Len())
	})
}

func TestService_Register(t *testing.T) {
	t.Parallel()

	t.Run("creates user and trial together", func(t *testing.T) {
		t.Parallel()
		svc, store, gw := newService(t)
		userID := uuid.New()

		gw.On("CreateCustomer", mock.Anything, "new@example.com", "New").Return("cus_1", nil).Once()
		gw.On("CreateSubscription", mock.Anything, mock.Anything).
			Return(&subscription.ProviderSubscription{ID: "sub_1", Status: subscription.ProviderStatusTrialing}, nil).Once()

		rec, err := svc.Register(context.Background(), subscription.RegisterRequest{Email: "new@example.com", Name: "New"},
			func(ctx context.Context, email, name string) (uuid.UUID, error) {
				return userID, nil
			})
		require.NoError(t, err)
		assert.Equal(t, userID, rec.UserID)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("provider failure rolls back", func(t *testing.T) {
		t.Parallel()
		svc, store, gw := newService(t)

		gw.On("CreateCustomer", mock.Anything, mock.Anything, mock.Anything).Return("", transientErr("create_customer")).Once()

		created := false
		_, err := svc.Register(context.Background(), subscription.RegisterRequest{Email: "new@example.com"},
			func(ctx context.Context, email, name string) (uuid.UUID, error) {
				created = true
				return uuid.New(), nil
			})
		require.Error(t, err)
		assert.True(t, created)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("user creation failure skips provider", func(t *testing.T) {
		t.Parallel()
		svc, _, gw := newService(t)
		errDuplicate := errors.New("email already taken")

		_, err := svc.Register(context.Background(), subscription.RegisterRequest{Email: "dup@example.com"},
			func(ctx context.Context, email, name string) (uuid.UUID, error) {
				return uuid.Nil, errDuplicate
			})
		assert.ErrorIs(t, err, errDuplicate)
		gw.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("nil creator", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newService(t)

		_, err := svc.Register(context.Background(), subscription.RegisterRequest{Email: "a@example.com"}, nil)
		assert.Error(t, err)
	})
}

func TestService_Upgrade(t *testing.T) {
	t.Parallel()

	t.Run("creates checkout session with derived redirects", func(t *testing.T) {
		t.Parallel()
		svc, store, gw := newService(t)
		rec := seed(t, store, nil)

		gw.On("CreateCheckoutSession", mock.Anything, subscription.CheckoutRequest{
			CustomerID: rec.ProviderCustomerID,
			PriceID:    "price_yearly",
			SuccessURL: "https://app.example.com/billing?plan=YEARLY&success=true",
			CancelURL:  "https://app.example.com/billing?success=false",
			Metadata: map[string]string{
				subscription.MetadataUserID: rec.UserID.String(),
				subscription.MetadataPlan:   "YEARLY",
			},
		}).Return(&subscription.CheckoutSession{ID: "cs_1", URL: "https://checkout.example.com/cs_1"}, nil).Once()

		session, err := svc.Upgrade(context.Background(), rec.UserID, subscription.UpgradeRequest{
			Plan:        subscription.PlanYearly,
			CallbackURL: "https://app.example.com/billing",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://checkout.example.com/cs_1", session.URL)

		stored, err := store.FindByUserID(context.Background(), rec.UserID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusTrialing, stored.Status)
		assert.Equal(t, subscription.PlanNone, stored.Plan)
		gw.AssertExpectations(t)
	})

	t.Run("preserves callback query", func(t *testing.T) {
		t.Parallel()
		svc, store, gw := newService(t)
		rec := seed(t, store, nil)

		gw.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(req subscription.CheckoutRequest) bool {
			return req.SuccessURL == "https://app.example.com/billing?plan=MONTHLY&success=true&tab=plans" &&
				req.CancelURL == "https://app.example.com/billing?success=false&tab=plans"
		})).Return(&subscription.CheckoutSession{ID: "cs_1", URL: "https://checkout.example.com/cs_1"}, nil).Once()

		_, err := svc.Upgrade(context.Background(), rec.UserID, subscription.UpgradeRequest{
			Plan:        subscription.PlanMonthly,
			CallbackURL: "https://app.example.com/billing?tab=plans",
		})
		require.NoError(t, err)
		gw.AssertExpectations(t)
	})

	t.Run("creates missing customer lazily", func(t *testing.T) {
		t.Parallel()
		svc, store, gw := newService(t)
		rec := seed(t, store, func(r *subscription.Record) { r.ProviderCustomerID = "" })

		gw.On("CreateCustomer", mock.Anything, "late@example.com", "Late").Return("cus_late", nil).Once()
		gw.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(req subscription.CheckoutRequest) bool {
			return req.CustomerID == "cus_late"
		})).Return(&subscription.CheckoutSession{ID: "cs_1", URL: "https://checkout.example.com/cs_1"}, nil).Once()

		_, err := svc.Upgrade(context.Background(), rec.UserID, subscription.UpgradeRequest{
			Plan:        subscription.PlanMonthly,
			CallbackURL: "https://app.example.com/billing",
			Email:       "late@example.com",
			Name:        "Late",
		})
		require.NoError(t, err)

		stored, err := store.FindByUserID(context.Background(), rec.UserID)
		require.NoError(t, err)
		assert.Equal(t, "cus_late", stored.ProviderCustomerID)
		gw.AssertExpectations(t)
	})

	t.Run("lazy customer requires email", func(t *testing.T) {
		t.Parallel()
		svc, store, gw := newService(t)
		rec := seed(t, store, func(r *subscription.Record) { r.ProviderCustomerID = "" })

		_, err := svc.Upgrade(context.Background(), rec.UserID, subscription.UpgradeRequest{
			Plan:        subscription.PlanMonthly,
			CallbackURL: "https://app.example.com/billing",
		})
		assert.ErrorIs(t, err, subscription.ErrInvalidEmail)
		gw.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejections", func(t *testing.T) {
		t.Parallel()
		svc, store, gw := newService(t)
		trialing := seed(t, store, nil)
		active := seed(t, store, activeRecord(subscription.PlanMonthly, "price_monthly"))

		tests := []struct {
			name   string
			userID uuid.UUID
			req    subscription.UpgradeRequest
			want   error
			class  error
		}{
			{
				name:   "invalid plan",
				userID: trialing.UserID,
				req:    subscription.UpgradeRequest{Plan: subscription.Plan("WEEKLY"), CallbackURL: "https://app.example.com"},
				want:   subscription.ErrInvalidPlan,
				class:  subscription.ErrClassBadRequest,
			},
			{
				name:   "empty callback",
				userID: trialing.UserID,
				req:    subscription.UpgradeRequest{Plan: subscription.PlanMonthly},
				want:   subscription.ErrInvalidCallbackURL,
				class:  subscription.ErrClassBadRequest,
			},
			{
				name:   "non http callback",
				userID: trialing.UserID,
				req:    subscription.UpgradeRequest{Plan: subscription.PlanMonthly, CallbackURL: "ftp://app.example.com"},
				want:   subscription.ErrInvalidCallbackURL,
				class:  subscription.ErrClassBadRequest,
			},
			{
				name:   "no record",
				userID: uuid.New(),
				req:    subscription.UpgradeRequest{Plan: subscription.PlanMonthly, CallbackURL: "https://app.example.com"},
				want:   subscription.ErrNoSubscription,
				class:  subscription.ErrClassNotEntitled,
			},
			{
				name:   "already active",
				userID: active.UserID,
				req:    subscription.UpgradeRequest{Plan: subscription.PlanYearly, CallbackURL: "https://app.example.com"},
				want:   subscription.ErrAlreadyActive,
				class:  subscription.ErrClassConflict,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.Upgrade(context.Background(), tt.userID, tt.req)
				assert.ErrorIs(t, err, tt.want)
				assert.ErrorIs(t, err, tt.class)
			})
		}
		gw.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
	})
}

func TestService_SwitchPlan(t *testing.T) {
	t.Parallel()

	t.Run("requests prorated item update", func(t *testing.T) {
		t.Parallel()
		svc, store, gw := newService(t)
		rec := seed(t, store, activeRecord(subscription.PlanMonthly, "price_monthly"))

		gw.On("RetrieveSubscription", mock.Anything, rec.ProviderSubscriptionID).Return(&subscription.ProviderSubscription{
			ID:      rec.ProviderSubscriptionID,
			Status:  subscription.ProviderStatusActive,
			ItemID:  "si_1",
			PriceID: "price_monthly",
		}, nil).Once()
		gw.On("UpdateSubscriptionItem", mock.Anything, subscription.ItemUpdateRequest{
			SubscriptionID: rec.ProviderSubscriptionID,
			ItemID:         "si_1",
			PriceID:        "price_yearly",
			Metadata: map[string]string{
				subscription.MetadataUserID: rec.UserID.String(),
				subscription.MetadataPlan:   "YEARLY",
			},
		}).Return(&subscription.ProviderSubscription{ID: rec.ProviderSubscriptionID}, nil).Once()

		res, err := svc.SwitchPlan(context.Background(), rec.UserID, subscription.PlanYearly)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "Plan switch to YEARLY is being processed", res.Message)

		// The record changes only when the provider confirms.
		stored, err := store.FindByUserID(context.Background(), rec.UserID)
		require.NoError(t, err)
		assert.Equal(t, subscription.PlanMonthly, stored.Plan)
		gw.AssertExpectations(t)
	})

	t.Run("same plan", func(t *testing.T) {
		t.Parallel()
		svc, store, gw := newService(t)
		rec := seed(t, store, activeRecord(subscription.PlanMonthly, "price_monthly"))

		_, err := svc.SwitchPlan(context.Background(), rec.UserID, subscription.PlanMonthly)
		assert.ErrorIs(t, err, subscription.ErrSamePlan)
		assert.ErrorIs(t, err, subscription.ErrClassConflict)
		gw.AssertNotCalled(t, "RetrieveSubscription", mock.Anything, mock.Anything)
	})

	t.Run("no provider subscription", func(t *testing.T) {
		t.Parallel()
		svc, store, _ := newService(t)
		rec := seed(t, store, func(r *subscription.Record) { r.ProviderSubscriptionID = "" })

		_, err := svc.SwitchPlan(context.Background(), rec.UserID, subscription.PlanYearly)
		assert.ErrorIs(t, err, subscription.ErrNoActiveSubscription)
	})

	t.Run("no record", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newService(t)

		_, err := svc.SwitchPlan(context.Background(), uuid.New(), subscription.PlanYearly)
		assert.ErrorIs(t, err, subscription.ErrNoSubscription)
	})

	t.Run("invalid plan", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newService(t)

		_, err := svc.SwitchPlan(context.Background(), uuid.New(), subscription.PlanNone)
		assert.ErrorIs(t, err, subscription.ErrInvalidPlan)
	})

	t.Run("subscription without items", func(t *testing.T) {
		t.Parallel()
		svc, store, gw := newService(t)
		rec := seed(t, store, activeRecord(subscription.PlanMonthly, "price_monthly"))

		gw.On("RetrieveSubscription", mock.Anything, rec.ProviderSubscriptionID).
			Return(&subscription.ProviderSubscription{ID: rec.ProviderSubscriptionID}, nil).Once()

		_, err := svc.SwitchPlan(context.Background(), rec.UserID, subscription.PlanYearly)
		assert.ErrorIs(t, err, subscription.ErrNoSubscriptionItem)
		gw.AssertNotCalled(t, "UpdateSubscriptionItem", mock.Anything, mock.Anything)
	})

	t.Run("provider failure keeps class", func(t *testing.T) {
		t.Parallel()
		svc, store, gw := newService(t)
		rec := seed(t, store, activeRecord(subscription.PlanMonthly, "price_monthly"))

		gw.On("RetrieveSubscription", mock.Anything, rec.ProviderSubscriptionID).Return(nil, transientErr("retrieve_subscription")).Once()

		_, err := svc.SwitchPlan(context.Background(), rec.UserID, subscription.PlanYearly)
		assert.ErrorIs(t, err, subscription.ErrClassProviderTransient)
	})
}

func TestService_BillingPortal(t *testing.T) {
	t.Parallel()

	t.Run("creates portal session", func(t *testing.T) {
		t.Parallel()
		svc, store, gw := newService(t)
		rec := seed(t, store, nil)

		gw.On("CreatePortalSession", mock.Anything, rec.ProviderCustomerID, "https://app.example.com/settings").
			Return(&subscription.PortalSession{ID: "bps_1", URL: "https://billing.example.com/p/1"}, nil).Once()

		session, err := svc.BillingPortal(context.Background(), rec.UserID, "https://app.example.com/settings")
		require.NoError(t, err)
		assert.Equal(t, "https://billing.example.com/p/1", session.URL)
		gw.AssertExpectations(t)
	})

	t.Run("no billing account", func(t *testing.T) {
		t.Parallel()
		svc, store, _ := newService(t)
		rec := seed(t, store, func(r *subscription.Record) { r.ProviderCustomerID = "" })

		_, err := svc.BillingPortal(context.Background(), rec.UserID, "https://app.example.com/settings")
		assert.ErrorIs(t, err, subscription.ErrNoBillingAccount)
		assert.ErrorIs(t, err, subscription.ErrClassNotEntitled)
	})

	t.Run("no record", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newService(t)

		_, err := svc.BillingPortal(context.Background(), uuid.New(), "https://app.example.com/settings")
		assert.ErrorIs(t, err, subscription.ErrNoSubscription)
	})

	t.Run("invalid return url", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newService(t)

		_, err := svc.BillingPortal(context.Background(), uuid.New(), "/settings")
		assert.ErrorIs(t, err, subscription.ErrInvalidCallbackURL)
	})

	t.Run("portal not configured", func(t *testing.T) {
		t.Parallel()
		svc, store, gw := newService(t)
		rec := seed(t, store, nil)

		gw.On("CreatePortalSession", mock.Anything, rec.ProviderCustomerID, mock.Anything).Return(nil, &subscription.ProviderError{
			Op:    "create_portal_session",
			Class: subscription.ErrClassConfiguration,
			Err:   errors.New("No configuration provided"),
		}).Once()

		_, err := svc.BillingPortal(context.Background(), rec.UserID, "https://app.example.com/settings")
		assert.ErrorIs(t, err, subscription.ErrPortalUnavailable)
		assert.ErrorIs(t, err, subscription.ErrClassConfiguration)
		assert.Equal(t, "Billing portal is not available. Please contact support", err.Error())
	})
}

func TestService_Status(t *testing.T) {
	t.Parallel()

	t.Run("trialing", func(t *testing.T) {
		t.Parallel()
		svc, store, _ := newService(t)
		rec := seed(t, store, func(r *subscription.Record) {
			end := testNow.Add(36 * time.Hour)
			r.TrialEndsAt = &end
		})

		view, err := svc.Status(context.Background(), rec.UserID)
		require.NoError(t, err)
		assert.True(t, view.IsTrialActive)
		assert.Equal(t, 2, view.DaysLeft)
		assert.Equal(t, 14, view.TrialDays)
		assert.Equal(t, subscription.StatusTrialing, view.Status)
		assert.Equal(t, subscription.PlanNone, view.CurrentPlan)
		require.Len(t, view.Plans, 2)
		assert.Equal(t, subscription.PlanMonthly, view.Plans[0].Plan)
		assert.Equal(t, subscription.PlanYearly, view.Plans[1].Plan)
	})

	t.Run("active", func(t *testing.T) {
		t.Parallel()
		svc, store, _ := newService(t)
		rec := seed(t, store, activeRecord(subscription.PlanYearly, "price_yearly"))

		view, err := svc.Status(context.Background(), rec.UserID)
		require.NoError(t, err)
		assert.False(t, view.IsTrialActive)
		assert.Equal(t, 0, view.DaysLeft)
		assert.Equal(t, subscription.PlanYearly, view.CurrentPlan)
		assert.Equal(t, subscription.StatusActive, view.Status)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newService(t)

		_, err := svc.Status(context.Background(), uuid.New())
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
		assert.ErrorIs(t, err, subscription.ErrClassNotFound)
	})
}

func TestService_Entitlement(t *testing.T) {
	t.Parallel()

	svc, store, _ := newService(t)
	trialing := seed(t, store, nil)
	expired := seed(t, store, func(r *subscription.Record) { r.Status = subscription.StatusTrialExpired })

	got, err := svc.Entitlement(context.Background(), trialing.UserID)
	require.NoError(t, err)
	assert.True(t, got.Entitled)

	got, err = svc.Entitlement(context.Background(), expired.UserID)
	require.NoError(t, err)
	assert.False(t, got.Entitled)
	assert.Equal(t, subscription.ReasonTrialExpired, got.Reason)

	got, err = svc.Entitlement(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, got.Entitled)
	assert.Equal(t, subscription.ReasonNoRecord, got.Reason)
}
