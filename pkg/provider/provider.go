package provider

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Supported provider names.
const (
	Stripe = "stripe"
	Paddle = "paddle"
)

// PaymentProvider is the capability the billing core needs from a payment
// provider. Implementations are selected once at startup.
//
// Every call is at-least-once safe: charges carry the local transaction id as
// idempotency key.
type PaymentProvider interface {
	// Name returns the provider name as stored in the ledger.
	Name() string

	// AddPaymentMethod starts saving a new method for the user. The method
	// itself arrives later through a webhook event.
	AddPaymentMethod(ctx context.Context, userID uuid.UUID, buttonText, returnURL string) (*MethodForm, error)

	// RemovePaymentMethod detaches a saved method on the provider side.
	RemovePaymentMethod(ctx context.Context, userID uuid.UUID, providerMethodID string) error

	// Charge requests a payment. Settlement is reported through webhook events.
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)

	// Refund returns the money of a settled charge.
	Refund(ctx context.Context, providerTransactionID, reason string) error

	// ParseEvent verifies the delivery signature and decodes the payload.
	// It returns ErrMalformedEvent for bad JSON or a bad signature.
	ParseEvent(ctx context.Context, payload []byte, header http.Header) (Event, error)
}

// MethodForm is what the client shows to collect a new payment method:
// either an HTML snippet or a hosted page to redirect to.
type MethodForm struct {
	HTML        string `json:"html,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// ChargeRequest describes a charge of a saved method.
type ChargeRequest struct {
	UserID           uuid.UUID
	ProviderMethodID string
	Amount           int64 // minor currency units
	Currency         string
	Metadata         map[string]string
	IdempotencyKey   string // local transaction id
	ProviderPriceID  string // catalog price for hosted-checkout providers
}

// ChargeResult is the provider's acknowledgement of a charge request.
type ChargeResult struct {
	ProviderTransactionID string
	// CheckoutURL is set when the customer must complete the payment on a hosted page.
	CheckoutURL string
}
