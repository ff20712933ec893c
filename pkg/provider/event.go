package provider

import "github.com/google/uuid"

// Event is a decoded webhook delivery. The set of variants is closed:
// MethodAttached, MethodDetached, PaymentProcessing, PaymentFailed,
// PaymentSucceeded, ChargeRefunded and Unhandled.
type Event interface {
	Meta() EventMeta
	event()
}

// EventMeta identifies a delivery.
type EventMeta struct {
	ID       string // provider event id, used for delivery dedup
	Type     string // provider event type
	Provider string
}

func (m EventMeta) Meta() EventMeta { return m }
func (EventMeta) event()            {}

// MethodAttached reports a payment method saved for a user.
type MethodAttached struct {
	EventMeta
	UserID           uuid.UUID
	ProviderMethodID string
	MethodType       string
	Payload          map[string]any // card display data: brand, expire, last4
}

// MethodDetached reports a payment method removed on the provider side.
// UserID is uuid.Nil when the provider does not say who owned it.
type MethodDetached struct {
	EventMeta
	UserID           uuid.UUID
	ProviderMethodID string
}

// Payment is the common body of charge status events.
type Payment struct {
	EventMeta
	UserID                uuid.UUID
	TransactionID         uuid.UUID
	ProviderTransactionID string
}

type (
	PaymentProcessing struct{ Payment }
	PaymentFailed     struct{ Payment }
	PaymentSucceeded  struct{ Payment }
)

// ChargeRefunded reports a refunded charge. UserID and TransactionID are
// uuid.Nil when the provider only reports its own transaction reference.
type ChargeRefunded struct {
	EventMeta
	UserID                uuid.UUID
	TransactionID         uuid.UUID
	ProviderTransactionID string
}

// Unhandled is a valid delivery of a type the billing core ignores.
type Unhandled struct {
	EventMeta
}
