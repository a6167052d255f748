package billing

import (
	"time"

	"github.com/dmitrymomot/billingsync/pkg/subscription"
	"github.com/dmitrymomot/billingsync/pkg/validator"
)

const maxURLLength = 2048

var callbackSchemes = []string{"http", "https"}

// UpgradeRequest is the body of POST /subscription/upgrade.
type UpgradeRequest struct {
	Plan        string `json:"plan"`
	CallbackURL string `json:"callbackUrl"`
}

func (r UpgradeRequest) Validate() error {
	return validator.Apply(
		validator.RequiredString("plan", r.Plan),
		validator.RequiredString("callbackUrl", r.CallbackURL),
		validator.MaxLenString("callbackUrl", r.CallbackURL, maxURLLength),
		validator.When(r.CallbackURL != "", validator.ValidURLWithScheme("callbackUrl", r.CallbackURL, callbackSchemes)),
	)
}

// SwitchPlanRequest is the body of POST /subscription/switch-plan.
type SwitchPlanRequest struct {
	NewPlan string `json:"newPlan"`
}

func (r SwitchPlanRequest) Validate() error {
	return validator.Apply(
		validator.RequiredString("newPlan", r.NewPlan),
	)
}

// BillingPortalRequest is the body of POST /subscription/billing-portal.
type BillingPortalRequest struct {
	CallbackURL string `json:"callbackUrl"`
}

func (r BillingPortalRequest) Validate() error {
	return validator.Apply(
		validator.RequiredString("callbackUrl", r.CallbackURL),
		validator.MaxLenString("callbackUrl", r.CallbackURL, maxURLLength),
		validator.When(r.CallbackURL != "", validator.ValidURLWithScheme("callbackUrl", r.CallbackURL, callbackSchemes)),
	)
}

// URLResponse carries a provider-hosted redirect.
type URLResponse struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

// SwitchPlanResponse acknowledges a plan switch.
type SwitchPlanResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// StatusResponse wraps the subscription view.
type StatusResponse struct {
	Message string           `json:"message"`
	Data    SubscriptionData `json:"data"`
}

// SubscriptionData is the subscription read model.
type SubscriptionData struct {
	IsTrialActive bool                `json:"isTrialActive"`
	CurrentPlan   *string             `json:"currentPlan"`
	TrialEndsAt   *time.Time          `json:"trialEndsAt"`
	TrialDays     int                 `json:"trialDays"`
	Status        string              `json:"status"`
	DaysLeft      int                 `json:"daysLeft"`
	PlanData      map[string]PlanData `json:"planData"`
}

// PlanData describes one purchasable plan.
type PlanData struct {
	Name       string   `json:"name"`
	Price      float64  `json:"price"`
	PriceLabel string   `json:"priceLabel"`
	Currency   string   `json:"currency"`
	Billing    string   `json:"billing"`
	Savings    *string  `json:"savings"`
	Features   []string `json:"features"`
}

// EntitlementResponse is the guard decision for the caller.
type EntitlementResponse struct {
	Entitled bool   `json:"entitled"`
	Reason   string `json:"reason,omitempty"`
	Message  string `json:"message,omitempty"`
}

// WebhookResponse acknowledges a delivery.
type WebhookResponse struct {
	Received bool `json:"received"`
}

func newSubscriptionData(v *subscription.View) SubscriptionData {
	data := SubscriptionData{
		IsTrialActive: v.IsTrialActive,
		TrialEndsAt:   v.TrialEndsAt,
		TrialDays:     v.TrialDays,
		Status:        v.Status.String(),
		DaysLeft:      v.DaysLeft,
		PlanData:      make(map[string]PlanData, len(v.Plans)),
	}
	if v.CurrentPlan.Valid() {
		plan := v.CurrentPlan.String()
		data.CurrentPlan = &plan
	}
	for _, p := range v.Plans {
		pd := PlanData{
			Name:       p.Name,
			Price:      p.Price.Units(),
			PriceLabel: p.PriceLabel(),
			Currency:   p.Price.Currency,
			Billing:    string(p.Billing),
			Features:   p.Features,
		}
		if p.Savings != "" {
			savings := p.Savings
			pd.Savings = &savings
		}
		if pd.Features == nil {
			pd.Features = []string{}
		}
		data.PlanData[p.Plan.String()] = pd
	}
	return data
}
