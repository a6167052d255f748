package subscription

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Record is the local mirror of one user's provider-side subscription.
// Each user has exactly one record, created at registration and never deleted.
type Record struct {
	UserID uuid.UUID // Primary key - one record per user
	Status Status
	Plan   Plan // PlanNone unless the subscription is paid and active

	ProviderCustomerID     string
	ProviderSubscriptionID string // Join key for inbound provider events
	ProviderPriceID        string

	// Trial fields are set at provisioning time and never mutated afterward.
	TrialStartsAt *time.Time
	TrialEndsAt   *time.Time
	TrialDays     int

	// Period fields are set only by confirmed billing events.
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time

	CanceledAt *time.Time
	UpgradedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTrialing returns true if the record is in trial status.
func (r *Record) IsTrialing() bool {
	return r.Status == StatusTrialing
}

// IsActive returns true if the record is in paid active status.
func (r *Record) IsActive() bool {
	return r.Status == StatusActive
}

// IsTrialActiveAt reports whether the trial is still running at now.
func (r *Record) IsTrialActiveAt(now time.Time) bool {
	return r.IsTrialing() && r.TrialEndsAt != nil && r.TrialEndsAt.After(now)
}

// TrialDaysLeftAt returns the whole days remaining in the trial at now,
// rounding partial days up. Returns 0 if the trial is not active.
func (r *Record) TrialDaysLeftAt(now time.Time) int {
	if !r.IsTrialActiveAt(now) {
		return 0
	}
	return int(math.Ceil(r.TrialEndsAt.Sub(now).Hours() / 24))
}

// Billing is a provider-confirmed billing snapshot applied to a record by
// the reconciler. It is always built from a freshly retrieved provider
// subscription, never from a possibly stale event payload.
type Billing struct {
	ProviderSubscriptionID string
	ProviderPriceID        string
	Plan                   Plan
	CurrentPeriodStart     time.Time
	CurrentPeriodEnd       time.Time
}

// PlanDiffers reports whether b carries a different plan or price than r.
func (b Billing) PlanDiffers(r *Record) bool {
	return r.Plan != b.Plan || r.ProviderPriceID != b.ProviderPriceID
}

// Differs reports whether applying b to r would change any billing field.
func (b Billing) Differs(r *Record) bool {
	return b.PlanDiffers(r) ||
		!timeEqual(r.CurrentPeriodStart, b.CurrentPeriodStart) ||
		!timeEqual(r.CurrentPeriodEnd, b.CurrentPeriodEnd)
}

func timeEqual(p *time.Time, t time.Time) bool {
	if p == nil {
		return t.IsZero()
	}
	return p.Equal(t)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
