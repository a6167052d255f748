package subscription

import "time"

// Reason is a stable code explaining why access was denied.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonNoRecord      Reason = "NO_RECORD_CODE"
	ReasonTrialExpired  Reason = "TRIAL_EXPIRED_CODE"
	ReasonPeriodExpired Reason = "PERIOD_EXPIRED_CODE"
	ReasonInvalidPeriod Reason = "INVALID_PERIOD_CODE"
	ReasonCanceled      Reason = "CANCELED_CODE"
	ReasonPastDue       Reason = "PAST_DUE_CODE"
	ReasonPaymentFailed Reason = "PAYMENT_FAILED_CODE"
	ReasonInvalidStatus Reason = "INVALID_STATUS_CODE"
)

var reasonMessages = map[Reason]string{
	ReasonNoRecord:      "No subscription found. Please subscribe first.",
	ReasonTrialExpired:  "Trial expired. Please upgrade your subscription.",
	ReasonPeriodExpired: "Subscription period expired. Please renew your subscription.",
	ReasonInvalidPeriod: "Invalid subscription period. Please contact support.",
	ReasonCanceled:      "Subscription canceled. Please subscribe again.",
	ReasonPastDue:       "Subscription payment overdue. Please update your payment method.",
	ReasonPaymentFailed: "Subscription payment failed. Please update your payment method.",
	ReasonInvalidStatus: "Invalid subscription status. Please contact support.",
}

// Message returns the user-facing message for the reason.
func (r Reason) Message() string {
	return reasonMessages[r]
}

// Entitlement is the outcome of an access check.
type Entitlement struct {
	Entitled bool
	Reason   Reason
}

// Message returns the user-facing denial message, empty when entitled.
func (e Entitlement) Message() string {
	return e.Reason.Message()
}

func deny(r Reason) Entitlement {
	return Entitlement{Reason: r}
}

// CheckEntitlement decides whether rec grants access at now.
// It is pure: no I/O, no caching. A nil record is denied with ReasonNoRecord.
func CheckEntitlement(rec *Record, now time.Time) Entitlement {
	if rec == nil {
		return deny(ReasonNoRecord)
	}

	switch rec.Status {
	case StatusTrialing:
		if rec.TrialEndsAt == nil || !rec.TrialEndsAt.After(now) {
			return deny(ReasonTrialExpired)
		}
		return Entitlement{Entitled: true}
	case StatusActive:
		if rec.CurrentPeriodEnd == nil {
			return deny(ReasonInvalidPeriod)
		}
		if !rec.CurrentPeriodEnd.After(now) {
			return deny(ReasonPeriodExpired)
		}
		return Entitlement{Entitled: true}
	case StatusTrialExpired:
		return deny(ReasonTrialExpired)
	case StatusCanceled:
		return deny(ReasonCanceled)
	case StatusPastDue:
		return deny(ReasonPastDue)
	case StatusPaymentFailed:
		return deny(ReasonPaymentFailed)
	}
	return deny(ReasonInvalidStatus)
}

// IsEntitled reports whether rec grants access at now.
func IsEntitled(rec *Record, now time.Time) bool {
	return CheckEntitlement(rec, now).Entitled
}
