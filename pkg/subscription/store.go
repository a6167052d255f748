package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists subscription records.
//
// All mutating methods except Create are single conditional writes: the
// condition is evaluated and the update applied atomically by the backend.
// They return applied=false when the record exists but the condition does
// not hold, and ErrRecordNotFound when there is no record for the user.
// Callers never read-modify-write a record across two round trips.
type Store interface {
	// Create inserts a new record. Returns ErrRecordExists if the user
	// already has one.
	Create(ctx context.Context, rec *Record) error

	// FindByUserID returns the record for a user or ErrRecordNotFound.
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Record, error)

	// FindByProviderSubscriptionID returns the record bound to a provider
	// subscription or ErrRecordNotFound.
	FindByProviderSubscriptionID(ctx context.Context, subscriptionID string) (*Record, error)

	// SetProviderCustomer stores the provider customer ID.
	// Condition: no customer ID stored yet.
	SetProviderCustomer(ctx context.Context, userID uuid.UUID, customerID string) (bool, error)

	// Activate moves the record to ACTIVE with the given billing snapshot and
	// sets UpgradedAt to at.
	// Condition: status != ACTIVE.
	Activate(ctx context.Context, userID uuid.UUID, b Billing, at time.Time) (bool, error)

	// Renew refreshes plan, price and period fields of an active record.
	// Condition: status == ACTIVE, bound to b.ProviderSubscriptionID, and any
	// of plan, price, period start or period end differs.
	Renew(ctx context.Context, userID uuid.UUID, b Billing) (bool, error)

	// SwitchPlan replaces plan, price and period fields of an active record.
	// Condition: status == ACTIVE, bound to b.ProviderSubscriptionID, and
	// plan or price differs.
	SwitchPlan(ctx context.Context, userID uuid.UUID, b Billing) (bool, error)

	// MarkPaymentFailed moves the record to PAYMENT_FAILED and clears the plan.
	// Condition: status is not PAYMENT_FAILED or terminal, and the record is
	// bound to subscriptionID.
	MarkPaymentFailed(ctx context.Context, userID uuid.UUID, subscriptionID string) (bool, error)

	// Terminate moves the record to a terminal status (CANCELED or
	// TRIAL_EXPIRED) and clears the plan. CanceledAt is written only when
	// canceledAt is non-nil.
	// Condition: status != status and bound to subscriptionID.
	Terminate(ctx context.Context, userID uuid.UUID, subscriptionID string, status Status, canceledAt *time.Time) (bool, error)

	// WithinTx runs fn in a single atomic transaction. Store calls made with
	// the context passed to fn participate in the transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
