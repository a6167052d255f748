package subscription

import "time"

// Config holds billing configuration shared by Service and Reconciler.
type Config struct {
	TrialDays      int           `env:"BILLING_TRIAL_DAYS" envDefault:"14"`
	MonthlyPriceID string        `env:"BILLING_MONTHLY_PRICE_ID,required"`
	YearlyPriceID  string        `env:"BILLING_YEARLY_PRICE_ID,required"`
	CatalogPath    string        `env:"BILLING_PLAN_CATALOG_PATH"`
	EventLedgerTTL time.Duration `env:"BILLING_EVENT_LEDGER_TTL" envDefault:"72h"`
}

// PriceForPlan returns the provider price ID configured for plan.
func (c Config) PriceForPlan(plan Plan) (string, bool) {
	switch plan {
	case PlanMonthly:
		return c.MonthlyPriceID, c.MonthlyPriceID != ""
	case PlanYearly:
		return c.YearlyPriceID, c.YearlyPriceID != ""
	}
	return "", false
}

// PlanForPrice maps a provider price ID back to a plan.
func (c Config) PlanForPrice(priceID string) (Plan, bool) {
	switch {
	case priceID == "":
		return PlanNone, false
	case priceID == c.MonthlyPriceID:
		return PlanMonthly, true
	case priceID == c.YearlyPriceID:
		return PlanYearly, true
	}
	return PlanNone, false
}

// TrialLength returns the configured trial duration.
func (c Config) TrialLength() time.Duration {
	return time.Duration(c.TrialDays) * 24 * time.Hour
}

// StripeConfig holds configuration for the Stripe gateway.
type StripeConfig struct {
	SecretKey         string        `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret     string        `env:"STRIPE_WEBHOOK_SECRET,required"`
	MaxNetworkRetries int64         `env:"STRIPE_MAX_NETWORK_RETRIES" envDefault:"2"`
	Timeout           time.Duration `env:"STRIPE_TIMEOUT" envDefault:"30s"`
	WebhookTolerance  time.Duration `env:"STRIPE_WEBHOOK_TOLERANCE" envDefault:"5m"`
	BreakerFailures   uint32        `env:"STRIPE_BREAKER_FAILURES" envDefault:"5"`
	BreakerTimeout    time.Duration `env:"STRIPE_BREAKER_TIMEOUT" envDefault:"30s"`
}
