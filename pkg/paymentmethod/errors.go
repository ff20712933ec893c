package paymentmethod

import "errors"

var (
	// ErrPaymentMethodNotFound is returned when the method is unknown, inactive or owned by someone else.
	ErrPaymentMethodNotFound = errors.New("payment method not found")
	// ErrSoleMethodAutoRenewing rejects removing the last method while the subscription auto-renews.
	ErrSoleMethodAutoRenewing = errors.New("cannot remove the only payment method while auto-renewal is enabled")
	// ErrNoDefaultPaymentMethod is returned when no method was given and the user has no default.
	ErrNoDefaultPaymentMethod = errors.New("no default payment method")
	// ErrUnsupportedMethodType is returned by Add for method kinds the ledger cannot store.
	ErrUnsupportedMethodType = errors.New("unsupported payment method type")
)
