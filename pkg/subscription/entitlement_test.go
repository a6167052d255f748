package subscription_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/billingsync/pkg/subscription"
)

func TestCheckEntitlement(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	future := now.Add(48 * time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name     string
		rec      *subscription.Record
		entitled bool
		reason   subscription.Reason
	}{
		{
			name:   "no record",
			rec:    nil,
			reason: subscription.ReasonNoRecord,
		},
		{
			name:     "trialing within trial",
			rec:      &subscription.Record{Status: subscription.StatusTrialing, TrialEndsAt: &future},
			entitled: true,
		},
		{
			name:   "trialing after trial end",
			rec:    &subscription.Record{Status: subscription.StatusTrialing, TrialEndsAt: &past},
			reason: subscription.ReasonTrialExpired,
		},
		{
			name:   "trialing exactly at trial end",
			rec:    &subscription.Record{Status: subscription.StatusTrialing, TrialEndsAt: &now},
			reason: subscription.ReasonTrialExpired,
		},
		{
			name:   "trialing without trial end",
			rec:    &subscription.Record{Status: subscription.StatusTrialing},
			reason: subscription.ReasonTrialExpired,
		},
		{
			name:     "active within period",
			rec:      &subscription.Record{Status: subscription.StatusActive, Plan: subscription.PlanMonthly, CurrentPeriodEnd: &future},
			entitled: true,
		},
		{
			name:   "active after period end",
			rec:    &subscription.Record{Status: subscription.StatusActive, Plan: subscription.PlanMonthly, CurrentPeriodEnd: &past},
			reason: subscription.ReasonPeriodExpired,
		},
		{
			name:   "active without period",
			rec:    &subscription.Record{Status: subscription.StatusActive, Plan: subscription.PlanMonthly},
			reason: subscription.ReasonInvalidPeriod,
		},
		{
			name:   "trial expired",
			rec:    &subscription.Record{Status: subscription.StatusTrialExpired, TrialEndsAt: &future},
			reason: subscription.ReasonTrialExpired,
		},
		{
			name:   "canceled with time left in period",
			rec:    &subscription.Record{Status: subscription.StatusCanceled, CurrentPeriodEnd: &future},
			reason: subscription.ReasonCanceled,
		},
		{
			name:   "past due",
			rec:    &subscription.Record{Status: subscription.StatusPastDue, CurrentPeriodEnd: &future},
			reason: subscription.ReasonPastDue,
		},
		{
			name:   "payment failed",
			rec:    &subscription.Record{Status: subscription.StatusPaymentFailed, CurrentPeriodEnd: &future},
			reason: subscription.ReasonPaymentFailed,
		},
		{
			name:   "unknown status",
			rec:    &subscription.Record{Status: subscription.Status("PAUSED")},
			reason: subscription.ReasonInvalidStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := subscription.CheckEntitlement(tt.rec, now)
			assert.Equal(t, tt.entitled, got.Entitled)
			assert.Equal(t, tt.reason, got.Reason)
			assert.Equal(t, tt.entitled, subscription.IsEntitled(tt.rec, now))
			if tt.entitled {
				assert.Empty(t, got.Message())
			} else {
				assert.NotEmpty(t, got.Message())
			}
		})
	}
}

func TestReasonMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Trial expired. Please upgrade your subscription.", subscription.ReasonTrialExpired.Message())
	assert.Equal(t, "No subscription found. Please subscribe first.", subscription.ReasonNoRecord.Message())
	assert.Empty(t, subscription.ReasonNone.Message())
}
