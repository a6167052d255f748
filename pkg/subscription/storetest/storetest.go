// Package storetest is a behavioral test suite shared by every
// subscription.Store implementation.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingsync/pkg/subscription"
)

// Run exercises the conditional write contract of a Store. newStore may
// return the same backend for every call; records never share IDs.
func Run(t *testing.T, newStore func(t *testing.T) subscription.Store) {
	t.Helper()

	t.Run("create and find", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		rec := trialRecord()

		require.NoError(t, s.Create(ctx, rec))
		assert.ErrorIs(t, s.Create(ctx, rec), subscription.ErrRecordExists)

		got, err := s.FindByUserID(ctx, rec.UserID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusTrialing, got.Status)
		assert.Equal(t, subscription.PlanNone, got.Plan)
		assert.Equal(t, rec.ProviderSubscriptionID, got.ProviderSubscriptionID)
		assert.Equal(t, 14, got.TrialDays)
		require.NotNil(t, got.TrialEndsAt)
		assert.True(t, rec.TrialEndsAt.Equal(*got.TrialEndsAt))
		assert.Nil(t, got.CurrentPeriodEnd)

		bySub, err := s.FindByProviderSubscriptionID(ctx, rec.ProviderSubscriptionID)
		require.NoError(t, err)
		assert.Equal(t, rec.UserID, bySub.UserID)

		_, err = s.FindByUserID(ctx, uuid.New())
		assert.ErrorIs(t, err, subscription.ErrRecordNotFound)
		_, err = s.FindByProviderSubscriptionID(ctx, "sub_missing_"+uuid.NewString())
		assert.ErrorIs(t, err, subscription.ErrRecordNotFound)
	})

	t.Run("missing record", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		missing := uuid.New()

		_, err := s.SetProviderCustomer(ctx, missing, "cus_x")
		assert.ErrorIs(t, err, subscription.ErrRecordNotFound)
		_, err = s.Activate(ctx, missing, billing("sub_x", subscription.PlanMonthly, "price_m", periodStart()), time.Now())
		assert.ErrorIs(t, err, subscription.ErrRecordNotFound)
		_, err = s.MarkPaymentFailed(ctx, missing, "sub_x")
		assert.ErrorIs(t, err, subscription.ErrRecordNotFound)
		_, err = s.Terminate(ctx, missing, "sub_x", subscription.StatusCanceled, nil)
		assert.ErrorIs(t, err, subscription.ErrRecordNotFound)
	})

	t.Run("set provider customer once", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		rec := trialRecord()
		rec.ProviderCustomerID = ""
		require.NoError(t, s.Create(ctx, rec))

		applied, err := s.SetProviderCustomer(ctx, rec.UserID, "cus_"+uuid.NewString())
		require.NoError(t, err)
		assert.True(t, applied)

		applied, err = s.SetProviderCustomer(ctx, rec.UserID, "cus_"+uuid.NewString())
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("activate rebinds subscription", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		rec := trialRecord()
		require.NoError(t, s.Create(ctx, rec))

		newSub := "sub_" + uuid.NewString()
		at := periodStart().Add(time.Hour)
		b := billing(newSub, subscription.PlanMonthly, "price_m", periodStart())

		applied, err := s.Activate(ctx, rec.UserID, b, at)
		require.NoError(t, err)
		assert.True(t, applied)

		got, err := s.FindByUserID(ctx, rec.UserID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, got.Status)
		assert.Equal(t, subscription.PlanMonthly, got.Plan)
		assert.Equal(t, newSub, got.ProviderSubscriptionID)
		assert.Equal(t, "price_m", got.ProviderPriceID)
		require.NotNil(t, got.CurrentPeriodEnd)
		assert.True(t, b.CurrentPeriodEnd.Equal(*got.CurrentPeriodEnd))
		require.NotNil(t, got.UpgradedAt)
		assert.True(t, at.Equal(*got.UpgradedAt))
		require.NotNil(t, got.TrialEndsAt, "trial fields are never cleared")

		_, err = s.FindByProviderSubscriptionID(ctx, rec.ProviderSubscriptionID)
		assert.ErrorIs(t, err, subscription.ErrRecordNotFound, "old subscription unbound")

		applied, err = s.Activate(ctx, rec.UserID, b, at.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, applied, "already active")
	})

	t.Run("renew only on change", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		rec, sub := activeRecord(t, s)

		applied, err := s.Renew(ctx, rec.UserID, billing(sub, subscription.PlanMonthly, "price_m", periodStart()))
		require.NoError(t, err)
		assert.False(t, applied, "same cycle")

		next := periodStart().AddDate(0, 1, 0)
		applied, err = s.Renew(ctx, rec.UserID, billing("sub_other", subscription.PlanMonthly, "price_m", next))
		require.NoError(t, err)
		assert.False(t, applied, "different subscription")

		applied, err = s.Renew(ctx, rec.UserID, billing(sub, subscription.PlanMonthly, "price_m", next))
		require.NoError(t, err)
		assert.True(t, applied)

		got, err := s.FindByUserID(ctx, rec.UserID)
		require.NoError(t, err)
		require.NotNil(t, got.CurrentPeriodStart)
		assert.True(t, next.Equal(*got.CurrentPeriodStart))
		assert.Equal(t, subscription.StatusActive, got.Status)
	})

	t.Run("switch plan only on plan change", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		rec, sub := activeRecord(t, s)

		applied, err := s.SwitchPlan(ctx, rec.UserID, billing(sub, subscription.PlanMonthly, "price_m", periodStart().AddDate(0, 1, 0)))
		require.NoError(t, err)
		assert.False(t, applied, "period change alone is not a switch")

		applied, err = s.SwitchPlan(ctx, rec.UserID, billing(sub, subscription.PlanYearly, "price_y", periodStart()))
		require.NoError(t, err)
		assert.True(t, applied)

		got, err := s.FindByUserID(ctx, rec.UserID)
		require.NoError(t, err)
		assert.Equal(t, subscription.PlanYearly, got.Plan)
		assert.Equal(t, "price_y", got.ProviderPriceID)
		assert.Equal(t, subscription.StatusActive, got.Status)
	})

	t.Run("switch plan requires active", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		rec := trialRecord()
		require.NoError(t, s.Create(ctx, rec))

		applied, err := s.SwitchPlan(ctx, rec.UserID, billing(rec.ProviderSubscriptionID, subscription.PlanYearly, "price_y", periodStart()))
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("payment failed clears plan", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		rec, sub := activeRecord(t, s)

		applied, err := s.MarkPaymentFailed(ctx, rec.UserID, "sub_other")
		require.NoError(t, err)
		assert.False(t, applied, "different subscription")

		applied, err = s.MarkPaymentFailed(ctx, rec.UserID, sub)
		require.NoError(t, err)
		assert.True(t, applied)

		applied, err = s.MarkPaymentFailed(ctx, rec.UserID, sub)
		require.NoError(t, err)
		assert.False(t, applied, "redelivery")

		got, err := s.FindByUserID(ctx, rec.UserID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusPaymentFailed, got.Status)
		assert.Equal(t, subscription.PlanNone, got.Plan)
		assert.Equal(t, "price_m", got.ProviderPriceID)
	})

	t.Run("payment failure never reopens a terminated record", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		rec, sub := activeRecord(t, s)
		at := periodStart().Add(48 * time.Hour)

		applied, err := s.Terminate(ctx, rec.UserID, sub, subscription.StatusCanceled, &at)
		require.NoError(t, err)
		require.True(t, applied)

		applied, err = s.MarkPaymentFailed(ctx, rec.UserID, sub)
		require.NoError(t, err)
		assert.False(t, applied)

		got, err := s.FindByUserID(ctx, rec.UserID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCanceled, got.Status)
	})

	t.Run("terminate canceled", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		rec, sub := activeRecord(t, s)
		at := periodStart().Add(48 * time.Hour)

		applied, err := s.Terminate(ctx, rec.UserID, sub, subscription.StatusCanceled, &at)
		require.NoError(t, err)
		assert.True(t, applied)

		applied, err = s.Terminate(ctx, rec.UserID, sub, subscription.StatusCanceled, &at)
		require.NoError(t, err)
		assert.False(t, applied)

		got, err := s.FindByUserID(ctx, rec.UserID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCanceled, got.Status)
		assert.Equal(t, subscription.PlanNone, got.Plan)
		require.NotNil(t, got.CanceledAt)
		assert.True(t, at.Equal(*got.CanceledAt))
	})

	t.Run("terminate trial expired keeps canceled at empty", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		rec := trialRecord()
		require.NoError(t, s.Create(ctx, rec))

		applied, err := s.Terminate(ctx, rec.UserID, "sub_stale", subscription.StatusTrialExpired, nil)
		require.NoError(t, err)
		assert.False(t, applied, "stale subscription")

		applied, err = s.Terminate(ctx, rec.UserID, rec.ProviderSubscriptionID, subscription.StatusTrialExpired, nil)
		require.NoError(t, err)
		assert.True(t, applied)

		got, err := s.FindByUserID(ctx, rec.UserID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusTrialExpired, got.Status)
		assert.Nil(t, got.CanceledAt)
	})

	t.Run("concurrent activation applies once", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		rec := trialRecord()
		require.NoError(t, s.Create(ctx, rec))

		b := billing("sub_"+uuid.NewString(), subscription.PlanMonthly, "price_m", periodStart())
		var (
			wg      sync.WaitGroup
			applied atomic.Int32
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := s.Activate(ctx, rec.UserID, b, periodStart())
				assert.NoError(t, err)
				if ok {
					applied.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.EqualValues(t, 1, applied.Load())
	})

	t.Run("transaction rollback", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		rec := trialRecord()
		boom := errors.New("user insert failed")

		err := s.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.Create(ctx, rec); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = s.FindByUserID(ctx, rec.UserID)
		assert.ErrorIs(t, err, subscription.ErrRecordNotFound)
	})

	t.Run("transaction commit", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		rec := trialRecord()

		err := s.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.Create(ctx, rec); err != nil {
				return err
			}
			_, err := s.SetProviderCustomer(ctx, rec.UserID, "cus_"+uuid.NewString())
			return err
		})
		require.NoError(t, err)

		got, err := s.FindByUserID(ctx, rec.UserID)
		require.NoError(t, err)
		assert.NotEmpty(t, got.ProviderCustomerID)
	})
}

func periodStart() time.Time {
	return time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
}

func billing(sub string, plan subscription.Plan, price string, start time.Time) subscription.Billing {
	end := start.AddDate(0, 1, 0)
	if plan == subscription.PlanYearly {
		end = start.AddDate(1, 0, 0)
	}
	return subscription.Billing{
		ProviderSubscriptionID: sub,
		ProviderPriceID:        price,
		Plan:                   plan,
		CurrentPeriodStart:     start,
		CurrentPeriodEnd:       end,
	}
}

func trialRecord() *subscription.Record {
	start := periodStart().Add(-14 * 24 * time.Hour)
	end := periodStart()
	return &subscription.Record{
		UserID:                 uuid.New(),
		Status:                 subscription.StatusTrialing,
		ProviderCustomerID:     "cus_" + uuid.NewString(),
		ProviderSubscriptionID: "sub_" + uuid.NewString(),
		TrialStartsAt:          &start,
		TrialEndsAt:            &end,
		TrialDays:              14,
		CreatedAt:              start,
	}
}

func activeRecord(t *testing.T, s subscription.Store) (*subscription.Record, string) {
	t.Helper()
	ctx := context.Background()
	rec := trialRecord()
	require.NoError(t, s.Create(ctx, rec))

	sub := "sub_" + uuid.NewString()
	applied, err := s.Activate(ctx, rec.UserID, billing(sub, subscription.PlanMonthly, "price_m", periodStart()), periodStart())
	require.NoError(t, err)
	require.True(t, applied)
	return rec, sub
}
