package subscription

import (
	"errors"
	"fmt"
)

// Error classes. Every caller-facing error matches exactly one of them with
// errors.Is, which is how transports map failures onto status codes.
var (
	ErrClassNotFound          = errors.New("not found")
	ErrClassNotEntitled       = errors.New("not entitled")
	ErrClassConflict          = errors.New("conflict")
	ErrClassBadRequest        = errors.New("bad request")
	ErrClassProviderTransient = errors.New("provider transient failure")
	ErrClassProviderRejected  = errors.New("provider rejected request")
	ErrClassVerification      = errors.New("verification failure")
	ErrClassConfiguration     = errors.New("internal configuration failure")
)

// Store errors.
var (
	ErrRecordNotFound = errors.New("subscription record not found")
	ErrRecordExists   = errors.New("subscription record already exists")
)

// Configuration errors.
var (
	ErrMissingSecretKey     = errors.New("stripe secret key is required")
	ErrMissingWebhookSecret = errors.New("stripe webhook secret is required")
	ErrMissingPriceID       = errors.New("price ID is required")
	ErrMissingUserID        = errors.New("user ID is required")
	ErrInvalidCatalog       = errors.New("invalid plan catalog")
)

// Caller-facing command errors. Messages are suitable for direct display.
var (
	ErrSubscriptionNotFound = NewError(ErrClassNotFound, "No subscription found")
	ErrNoSubscription       = NewError(ErrClassNotEntitled, "No subscription found. Please subscribe first.")
	ErrNoBillingAccount     = NewError(ErrClassNotEntitled, "No billing account found. Please subscribe first.")
	ErrNoActiveSubscription = NewError(ErrClassNotEntitled, "No active subscription found")
	ErrAlreadyActive        = NewError(ErrClassConflict, "You already have an active subscription")
	ErrSamePlan             = NewError(ErrClassConflict, "You are already subscribed to this plan")
	ErrInvalidPlan          = NewError(ErrClassBadRequest, "Invalid subscription plan")
	ErrInvalidCallbackURL   = NewError(ErrClassBadRequest, "Invalid callback URL")
	ErrInvalidEmail         = NewError(ErrClassBadRequest, "Email is required")
	ErrPortalUnavailable    = NewError(ErrClassConfiguration, "Billing portal is not available. Please contact support")
	ErrWebhookVerification  = NewError(ErrClassVerification, "Webhook signature verification failed")
	ErrProviderUnavailable  = NewError(ErrClassProviderTransient, "Payment provider is temporarily unavailable. Please try again later")
	ErrNoSubscriptionItem   = NewError(ErrClassConfiguration, "Subscription has no billable item. Please contact support")
	ErrUnknownPrice         = errors.New("price does not map to a configured plan")
	ErrMissingPeriod        = errors.New("subscription has no current period end")
)

// Error is a caller-facing failure with a stable message and a class.
type Error struct {
	class error
	msg   string
	cause error
}

// NewError creates an error of the given class with a display message.
func NewError(class error, msg string) *Error {
	return &Error{class: class, msg: msg}
}

func (e *Error) Error() string {
	return e.msg
}

// Class returns the error class sentinel.
func (e *Error) Class() error {
	return e.class
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches the class sentinel and any *Error with the same class and message,
// so wrapped copies created by Wrap still compare equal to the original.
func (e *Error) Is(target error) bool {
	if target == e.class {
		return true
	}
	t, ok := target.(*Error)
	return ok && t.class == e.class && t.msg == e.msg
}

// Wrap returns a copy of e carrying cause for logging and errors.As.
func (e *Error) Wrap(cause error) *Error {
	return &Error{class: e.class, msg: e.msg, cause: cause}
}

// ProviderError is a failed provider call, classified as transient,
// rejected, or configuration.
type ProviderError struct {
	Op    string // Gateway operation, e.g. "create_customer"
	Class error  // ErrClassProviderTransient, ErrClassProviderRejected or ErrClassConfiguration
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Is(target error) bool {
	return target == e.Class
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrClassProviderTransient)
}
