package subscription

import "strings"

// Status is the lifecycle state of a subscription record.
type Status string

const (
	StatusTrialing      Status = "TRIALING"
	StatusActive        Status = "ACTIVE"
	StatusPastDue       Status = "PAST_DUE"
	StatusPaymentFailed Status = "PAYMENT_FAILED"
	StatusTrialExpired  Status = "TRIAL_EXPIRED"
	StatusCanceled      Status = "CANCELED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTrialing, StatusActive, StatusPastDue, StatusPaymentFailed, StatusTrialExpired, StatusCanceled:
		return true
	}
	return false
}

// Terminal reports whether s ends the subscription lifecycle. Only a new
// paid subscription moves a terminal record again.
func (s Status) Terminal() bool {
	return s == StatusCanceled || s == StatusTrialExpired
}

func (s Status) String() string {
	return string(s)
}

// Name implements statemachine.State.
func (s Status) Name() string {
	return string(s)
}

// Plan is a paid billing plan. The zero value means no plan.
type Plan string

const (
	PlanNone    Plan = ""
	PlanMonthly Plan = "MONTHLY"
	PlanYearly  Plan = "YEARLY"
)

// Plans lists the paid plans in display order.
var Plans = []Plan{PlanMonthly, PlanYearly}

// ParsePlan converts a case-insensitive plan name into a Plan.
func ParsePlan(s string) (Plan, error) {
	switch Plan(strings.ToUpper(strings.TrimSpace(s))) {
	case PlanMonthly:
		return PlanMonthly, nil
	case PlanYearly:
		return PlanYearly, nil
	}
	return PlanNone, ErrInvalidPlan
}

// Valid reports whether p is a known paid plan.
func (p Plan) Valid() bool {
	return p == PlanMonthly || p == PlanYearly
}

func (p Plan) String() string {
	return string(p)
}

// Money represents a monetary amount in the smallest currency unit.
// For example, $10.99 USD would be Amount: 1099, Currency: "USD".
type Money struct {
	Amount   int64  `yaml:"amount"`   // Amount in smallest currency unit (cents for USD)
	Currency string `yaml:"currency"` // ISO 4217 currency code
}

// Units returns the amount in major currency units, e.g. 9.99 for 999 cents.
func (m Money) Units() float64 {
	return float64(m.Amount) / 100
}

// BillingInterval is the billing frequency of a plan.
type BillingInterval string

const (
	BillingIntervalMonth BillingInterval = "month"
	BillingIntervalYear  BillingInterval = "year"
)
