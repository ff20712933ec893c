package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	stripesdk "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/dmitrymomot/billing/pkg/provider"
)

// SignatureHeader carries the Stripe webhook signature.
const SignatureHeader = "Stripe-Signature"

// Event types the billing core acts on.
const (
	eventMethodAttached    = "payment_method.attached"
	eventMethodDetached    = "payment_method.detached"
	eventPaymentProcessing = "payment_intent.processing"
	eventPaymentFailed     = "payment_intent.payment_failed"
	eventPaymentSucceeded  = "payment_intent.succeeded"
	eventChargeRefunded    = "charge.refunded"
)

// ParseEvent verifies the Stripe-Signature header and decodes the delivery.
func (p *Provider) ParseEvent(_ context.Context, payload []byte, header http.Header) (provider.Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, header.Get(SignatureHeader), p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, errors.Join(provider.ErrMalformedEvent, err)
	}
	if ev.Data == nil {
		return nil, errors.Join(provider.ErrMalformedEvent, errors.New("stripe: event without data"))
	}

	meta := provider.EventMeta{ID: ev.ID, Type: string(ev.Type), Provider: provider.Stripe}
	switch meta.Type {
	case eventMethodAttached:
		return decodeAttached(meta, ev.Data)
	case eventMethodDetached:
		return decodeDetached(meta, ev.Data)
	case eventPaymentProcessing, eventPaymentFailed, eventPaymentSucceeded:
		return decodePayment(meta, ev.Data)
	case eventChargeRefunded:
		return decodeRefund(meta, ev.Data)
	default:
		return provider.Unhandled{EventMeta: meta}, nil
	}
}

func decodeAttached(meta provider.EventMeta, data *stripesdk.EventData) (provider.Event, error) {
	var pm stripesdk.PaymentMethod
	if err := json.Unmarshal(data.Raw, &pm); err != nil {
		return nil, malformed(meta, err)
	}
	userID, err := customerID(pm.Customer)
	if err != nil {
		return nil, malformed(meta, err)
	}

	attached := provider.MethodAttached{
		EventMeta:        meta,
		UserID:           userID,
		ProviderMethodID: pm.ID,
		MethodType:       string(pm.Type),
	}
	if pm.Card != nil {
		attached.Payload = map[string]any{
			"brand":  string(pm.Card.Brand),
			"expire": fmt.Sprintf("%d/%d", pm.Card.ExpMonth, pm.Card.ExpYear),
			"last4":  pm.Card.Last4,
		}
	}
	return attached, nil
}

func decodeDetached(meta provider.EventMeta, data *stripesdk.EventData) (provider.Event, error) {
	var pm stripesdk.PaymentMethod
	if err := json.Unmarshal(data.Raw, &pm); err != nil {
		return nil, malformed(meta, err)
	}
	detached := provider.MethodDetached{EventMeta: meta, ProviderMethodID: pm.ID}

	// The detached object no longer has a customer; the previous one is in previous_attributes.
	if prev, ok := data.PreviousAttributes["customer"].(string); ok {
		if id, err := uuid.Parse(prev); err == nil {
			detached.UserID = id
		}
	}
	return detached, nil
}

func decodePayment(meta provider.EventMeta, data *stripesdk.EventData) (provider.Event, error) {
	var pi stripesdk.PaymentIntent
	if err := json.Unmarshal(data.Raw, &pi); err != nil {
		return nil, malformed(meta, err)
	}
	userID, err := customerID(pi.Customer)
	if err != nil {
		return nil, malformed(meta, err)
	}
	txID, err := uuid.Parse(pi.Metadata["transaction_id"])
	if err != nil {
		return nil, malformed(meta, fmt.Errorf("metadata.transaction_id: %w", err))
	}

	payment := provider.Payment{
		EventMeta:             meta,
		UserID:                userID,
		TransactionID:         txID,
		ProviderTransactionID: pi.ID,
	}
	switch meta.Type {
	case eventPaymentProcessing:
		return provider.PaymentProcessing{Payment: payment}, nil
	case eventPaymentFailed:
		return provider.PaymentFailed{Payment: payment}, nil
	default:
		return provider.PaymentSucceeded{Payment: payment}, nil
	}
}

func decodeRefund(meta provider.EventMeta, data *stripesdk.EventData) (provider.Event, error) {
	var ch stripesdk.Charge
	if err := json.Unmarshal(data.Raw, &ch); err != nil {
		return nil, malformed(meta, err)
	}

	refund := provider.ChargeRefunded{EventMeta: meta}
	if ch.PaymentIntent != nil {
		refund.ProviderTransactionID = ch.PaymentIntent.ID
	}
	if id, err := customerID(ch.Customer); err == nil {
		refund.UserID = id
	}
	if id, err := uuid.Parse(ch.Metadata["transaction_id"]); err == nil {
		refund.TransactionID = id
	}
	if refund.TransactionID == uuid.Nil && refund.ProviderTransactionID == "" {
		return nil, malformed(meta, errors.New("refund carries no transaction reference"))
	}
	return refund, nil
}

func customerID(c *stripesdk.Customer) (uuid.UUID, error) {
	if c == nil || c.ID == "" {
		return uuid.Nil, errors.New("customer is missing")
	}
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("customer %q is not a user id: %w", c.ID, err)
	}
	return id, nil
}

func malformed(meta provider.EventMeta, err error) error {
	return errors.Join(provider.ErrMalformedEvent, fmt.Errorf("stripe: %s %s: %w", meta.Type, meta.ID, err))
}
