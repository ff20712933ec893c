package billing

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrymomot/billing/pkg/logger"
	"github.com/dmitrymomot/billing/pkg/paymentmethod"
	"github.com/dmitrymomot/billing/pkg/provider"
	"github.com/dmitrymomot/billing/pkg/response"
	"github.com/dmitrymomot/billing/pkg/subscription"
	"github.com/dmitrymomot/billing/pkg/transaction"
)

var (
	// ErrInvalidRequest reports a body or path parameter that could not be decoded.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthenticated reports a customer route reached without a user id.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrPayloadTooLarge reports a webhook body over the size cap.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrUnknownWebhookProvider reports a delivery addressed to a provider other than the configured one.
	ErrUnknownWebhookProvider = errors.New("unknown webhook provider")
)

// httpError is the status and error code a domain error is rendered with.
type httpError struct {
	Status int
	Code   string
}

var (
	errBadRequest      = httpError{http.StatusBadRequest, "bad_request"}
	errUnauthorized    = httpError{http.StatusUnauthorized, "unauthorized"}
	errPaymentRequired = httpError{http.StatusPaymentRequired, "payment_required"}
	errNotFound        = httpError{http.StatusNotFound, "not_found"}
	errTooLarge        = httpError{http.StatusRequestEntityTooLarge, "request_entity_too_large"}
	errUnprocessable   = httpError{http.StatusUnprocessableEntity, "unprocessable_entity"}
	errInternal        = httpError{http.StatusInternalServerError, "internal_server_error"}
	errNotImplemented  = httpError{http.StatusNotImplemented, "not_implemented"}
	errBadGateway      = httpError{http.StatusBadGateway, "bad_gateway"}
	errGatewayTimeout  = httpError{http.StatusGatewayTimeout, "gateway_timeout"}
)

// classify maps an error to its HTTP rendering. Unknown errors are internal.
func classify(err error) httpError {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return errBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return errUnauthorized
	case errors.Is(err, ErrPayloadTooLarge):
		return errTooLarge
	case errors.Is(err, ErrUnknownWebhookProvider),
		errors.Is(err, subscription.ErrPlanNotFound),
		errors.Is(err, subscription.ErrSubscriptionNotFound),
		errors.Is(err, subscription.ErrNoActiveSubscription),
		errors.Is(err, paymentmethod.ErrPaymentMethodNotFound),
		errors.Is(err, transaction.ErrTransactionNotFound),
		errors.Is(err, provider.ErrPaymentMethodNotFound),
		errors.Is(err, provider.ErrTransactionNotFound):
		return errNotFound
	case errors.Is(err, paymentmethod.ErrSoleMethodAutoRenewing),
		errors.Is(err, paymentmethod.ErrNoDefaultPaymentMethod),
		errors.Is(err, subscription.ErrTransactionNotRefundable),
		errors.Is(err, provider.ErrAlreadyRefunded):
		return errUnprocessable
	case errors.Is(err, provider.ErrChargeDeclined):
		return errPaymentRequired
	case errors.Is(err, provider.ErrNotSupported):
		return errNotImplemented
	case provider.IsUnavailable(err):
		if errors.Is(err, context.DeadlineExceeded) {
			return errGatewayTimeout
		}
		return errBadGateway
	default:
		return errInternal
	}
}

// fail renders err. Server errors are logged and their message is not exposed.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	he := classify(err)
	msg := err.Error()
	if he.Status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			logger.Error(err),
			"method", r.Method,
			"path", r.URL.Path,
			"status", he.Status,
		)
		msg = http.StatusText(he.Status)
	}
	response.Error(w, he.Status, he.Code, msg)
}
