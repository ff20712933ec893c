package provider

import (
	"context"
	"errors"
	"net"
)

var (
	// ErrUpstreamUnavailable reports a provider that could not be reached or timed out.
	ErrUpstreamUnavailable = errors.New("payment provider unavailable")
	// ErrMalformedEvent reports an unparseable payload or a failed signature check.
	ErrMalformedEvent = errors.New("malformed provider event")
	// ErrPaymentMethodNotFound reports a provider method that does not exist or is not the user's.
	ErrPaymentMethodNotFound = errors.New("provider payment method not found")
	// ErrTransactionNotFound reports an unknown provider transaction.
	ErrTransactionNotFound = errors.New("provider transaction not found")
	// ErrAlreadyRefunded reports a refund of a charge refunded before.
	ErrAlreadyRefunded = errors.New("provider transaction already refunded")
	// ErrChargeDeclined reports a charge the provider refused.
	ErrChargeDeclined = errors.New("charge declined")
	// ErrNotSupported reports an operation the provider cannot perform.
	ErrNotSupported = errors.New("operation not supported by payment provider")
	// ErrUnknownProvider reports a provider name outside the supported set.
	ErrUnknownProvider = errors.New("unknown payment provider")
)

// IsUnavailable reports whether err means the provider could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}

// Unavailable marks transport failures and deadlines as ErrUpstreamUnavailable.
// Other errors are returned unchanged.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrUpstreamUnavailable) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return errors.Join(ErrUpstreamUnavailable, err)
	}
	return err
}
