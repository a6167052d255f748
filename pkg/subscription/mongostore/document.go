package mongostore

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingsync/pkg/subscription"
)

// document is the BSON shape of a subscription record. Empty optional fields
// are omitted so the partial unique indexes skip them.
type document struct {
	UserID                 string     `bson:"_id"`
	Status                 string     `bson:"status"`
	Plan                   string     `bson:"plan,omitempty"`
	ProviderCustomerID     string     `bson:"provider_customer_id,omitempty"`
	ProviderSubscriptionID string     `bson:"provider_subscription_id,omitempty"`
	ProviderPriceID        string     `bson:"provider_price_id,omitempty"`
	TrialStartsAt          *time.Time `bson:"trial_starts_at,omitempty"`
	TrialEndsAt            *time.Time `bson:"trial_ends_at,omitempty"`
	TrialDays              int        `bson:"trial_days"`
	CurrentPeriodStart     *time.Time `bson:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `bson:"current_period_end,omitempty"`
	CanceledAt             *time.Time `bson:"canceled_at,omitempty"`
	UpgradedAt             *time.Time `bson:"upgraded_at,omitempty"`
	CreatedAt              time.Time  `bson:"created_at"`
	UpdatedAt              time.Time  `bson:"updated_at"`
}

func fromRecord(rec *subscription.Record) document {
	return document{
		UserID:                 rec.UserID.String(),
		Status:                 string(rec.Status),
		Plan:                   string(rec.Plan),
		ProviderCustomerID:     rec.ProviderCustomerID,
		ProviderSubscriptionID: rec.ProviderSubscriptionID,
		ProviderPriceID:        rec.ProviderPriceID,
		TrialStartsAt:          rec.TrialStartsAt,
		TrialEndsAt:            rec.TrialEndsAt,
		TrialDays:              rec.TrialDays,
		CurrentPeriodStart:     rec.CurrentPeriodStart,
		CurrentPeriodEnd:       rec.CurrentPeriodEnd,
		CanceledAt:             rec.CanceledAt,
		UpgradedAt:             rec.UpgradedAt,
		CreatedAt:              rec.CreatedAt,
		UpdatedAt:              rec.UpdatedAt,
	}
}

func (d document) toRecord() (*subscription.Record, error) {
	userID, err := uuid.Parse(d.UserID)
	if err != nil {
		return nil, err
	}
	return &subscription.Record{
		UserID:                 userID,
		Status:                 subscription.Status(d.Status),
		Plan:                   subscription.Plan(d.Plan),
		ProviderCustomerID:     d.ProviderCustomerID,
		ProviderSubscriptionID: d.ProviderSubscriptionID,
		ProviderPriceID:        d.ProviderPriceID,
		TrialStartsAt:          utc(d.TrialStartsAt),
		TrialEndsAt:            utc(d.TrialEndsAt),
		TrialDays:              d.TrialDays,
		CurrentPeriodStart:     utc(d.CurrentPeriodStart),
		CurrentPeriodEnd:       utc(d.CurrentPeriodEnd),
		CanceledAt:             utc(d.CanceledAt),
		UpgradedAt:             utc(d.UpgradedAt),
		CreatedAt:              d.CreatedAt.UTC(),
		UpdatedAt:              d.UpdatedAt.UTC(),
	}, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
