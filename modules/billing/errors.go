package billing

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/billingsync/handler"
	"github.com/dmitrymomot/billingsync/pkg/subscription"
)

var (
	errUnauthenticated = handler.ErrUnauthorized.WithMessage("Authentication required")
	errRejected        = handler.ErrBadGateway.WithMessage("Payment provider rejected the request. Please contact support")
)

// ClassifyError maps subscription errors onto HTTP errors. The class of the
// outermost *subscription.Error wins; bare provider errors are classified by
// their own class.
func ClassifyError(err error) (handler.HTTPError, bool) {
	var subErr *subscription.Error
	if errors.As(err, &subErr) {
		return classify(subErr.Class(), subErr.Error())
	}

	for _, class := range []error{
		subscription.ErrClassConfiguration,
		subscription.ErrClassProviderTransient,
		subscription.ErrClassProviderRejected,
		subscription.ErrClassVerification,
	} {
		if errors.Is(err, class) {
			return classify(class, "")
		}
	}
	return handler.HTTPError{}, false
}

func classify(class error, msg string) (handler.HTTPError, bool) {
	switch class {
	case subscription.ErrClassNotFound:
		return handler.ErrNotFound.WithMessage(msg), true
	case subscription.ErrClassNotEntitled:
		return handler.ErrForbidden.WithMessage(msg), true
	case subscription.ErrClassConflict:
		return handler.ErrConflict.WithMessage(msg), true
	case subscription.ErrClassBadRequest:
		return handler.ErrBadRequest.WithMessage(msg), true
	case subscription.ErrClassVerification:
		return handler.NewHTTPError(http.StatusBadRequest, "verification_failed").WithMessage(subscription.ErrWebhookVerification.Error()), true
	case subscription.ErrClassConfiguration:
		if msg == "" {
			msg = subscription.ErrPortalUnavailable.Error()
		}
		return handler.ErrInternalServerError.WithMessage(msg), true
	case subscription.ErrClassProviderTransient:
		return handler.ErrServiceUnavailable.WithMessage(subscription.ErrProviderUnavailable.Error()), true
	case subscription.ErrClassProviderRejected:
		return errRejected, true
	}
	return handler.HTTPError{}, false
}

// webhookFailure returns the status and the class label for a failed
// delivery. Only verification failures are client errors; everything else
// asks the provider to redeliver.
func webhookFailure(err error) (int, string) {
	switch {
	case errors.Is(err, subscription.ErrClassVerification):
		return http.StatusBadRequest, "verification_failed"
	case errors.Is(err, subscription.ErrClassProviderTransient):
		return http.StatusInternalServerError, "provider_unavailable"
	case errors.Is(err, subscription.ErrClassProviderRejected):
		return http.StatusInternalServerError, "provider_rejected"
	case errors.Is(err, subscription.ErrClassConfiguration):
		return http.StatusInternalServerError, "configuration_error"
	}
	return http.StatusInternalServerError, "internal_error"
}
