package subscription

import (
	"errors"

	"github.com/dmitrymomot/billing/pkg/paymentmethod"
	"github.com/dmitrymomot/billing/pkg/transaction"
)

var (
	ErrPlanNotFound         = errors.New("subscription plan not found")
	ErrInvalidPlan          = errors.New("invalid subscription plan configuration")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrTransactionNotRefundable is returned for charges that did not settle
	// or carry no provider reference.
	ErrTransactionNotRefundable = errors.New("transaction cannot be refunded")
	ErrUnknownProration         = errors.New("unknown proration strategy")

	// Renewal charges held back by the retry policy.
	ErrChargeInFlight   = errors.New("renewal charge already in flight")
	ErrRenewalBackoff   = errors.New("renewal retry not due yet")
	ErrRenewalExhausted = errors.New("renewal attempts exhausted")

	// Re-exported so callers of the engine need a single import for classification.
	ErrNoDefaultPaymentMethod = paymentmethod.ErrNoDefaultPaymentMethod
	ErrPaymentMethodNotFound  = paymentmethod.ErrPaymentMethodNotFound
	ErrTransactionNotFound    = transaction.ErrTransactionNotFound
)
