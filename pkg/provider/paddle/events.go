package paddle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billing/pkg/provider"
)

// SignatureHeader carries the Paddle webhook signature.
const SignatureHeader = "Paddle-Signature"

const (
	eventTransactionCompleted     = "transaction.completed"
	eventTransactionPaid          = "transaction.paid"
	eventTransactionPaymentFailed = "transaction.payment_failed"
	eventAdjustmentCreated        = "adjustment.created"
	eventAdjustmentUpdated        = "adjustment.updated"
)

type envelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

type transactionData struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	CustomData map[string]any `json:"custom_data"`
	Payments   []struct {
		PaymentMethodID string `json:"payment_method_id"`
		Status          string `json:"status"`
		MethodDetails   *struct {
			Type string `json:"type"`
			Card *struct {
				Type        string `json:"type"`
				Last4       string `json:"last4"`
				ExpiryMonth int    `json:"expiry_month"`
				ExpiryYear  int    `json:"expiry_year"`
			} `json:"card"`
		} `json:"method_details"`
	} `json:"payments"`
}

func (d transactionData) custom(key string) string {
	s, _ := d.CustomData[key].(string)
	return s
}

type adjustmentData struct {
	ID            string `json:"id"`
	Action        string `json:"action"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
}

// ParseEvent verifies the Paddle-Signature header and decodes the delivery.
func (p *Provider) ParseEvent(ctx context.Context, payload []byte, header http.Header) (provider.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhooks/paddle", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("paddle: build verification request: %w", err)
	}
	req.Header.Set(SignatureHeader, header.Get(SignatureHeader))

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(provider.ErrMalformedEvent, err)
	}
	if !valid {
		return nil, errors.Join(provider.ErrMalformedEvent, errors.New("paddle: signature mismatch"))
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errors.Join(provider.ErrMalformedEvent, err)
	}
	meta := provider.EventMeta{ID: env.EventID, Type: env.EventType, Provider: provider.Paddle}

	switch env.EventType {
	case eventTransactionCompleted, eventTransactionPaid, eventTransactionPaymentFailed:
		var data transactionData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, malformed(meta, err)
		}
		return decodeTransaction(meta, data)
	case eventAdjustmentCreated, eventAdjustmentUpdated:
		var data adjustmentData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, malformed(meta, err)
		}
		if data.Action != "refund" || data.Status != "approved" || data.TransactionID == "" {
			return provider.Unhandled{EventMeta: meta}, nil
		}
		return provider.ChargeRefunded{EventMeta: meta, ProviderTransactionID: data.TransactionID}, nil
	default:
		return provider.Unhandled{EventMeta: meta}, nil
	}
}

func decodeTransaction(meta provider.EventMeta, data transactionData) (provider.Event, error) {
	userID, err := uuid.Parse(data.custom(customUserID))
	if err != nil {
		// Checkouts not started by the billing service carry no user.
		return provider.Unhandled{EventMeta: meta}, nil
	}

	if data.custom(customPurpose) == purposeSetup {
		if meta.Type != eventTransactionCompleted {
			return provider.Unhandled{EventMeta: meta}, nil
		}
		return decodeSavedCard(meta, userID, data)
	}

	txID, err := uuid.Parse(data.custom(customTransactionID))
	if err != nil {
		return nil, malformed(meta, fmt.Errorf("custom_data.transaction_id: %w", err))
	}
	payment := provider.Payment{
		EventMeta:             meta,
		UserID:                userID,
		TransactionID:         txID,
		ProviderTransactionID: data.ID,
	}
	switch meta.Type {
	case eventTransactionPaid:
		return provider.PaymentProcessing{Payment: payment}, nil
	case eventTransactionPaymentFailed:
		return provider.PaymentFailed{Payment: payment}, nil
	default:
		return provider.PaymentSucceeded{Payment: payment}, nil
	}
}

func decodeSavedCard(meta provider.EventMeta, userID uuid.UUID, data transactionData) (provider.Event, error) {
	for _, pay := range data.Payments {
		if pay.PaymentMethodID == "" || pay.MethodDetails == nil {
			continue
		}
		attached := provider.MethodAttached{
			EventMeta:        meta,
			UserID:           userID,
			ProviderMethodID: pay.PaymentMethodID,
			MethodType:       pay.MethodDetails.Type,
		}
		if c := pay.MethodDetails.Card; c != nil {
			attached.Payload = map[string]any{
				"brand":  c.Type,
				"expire": fmt.Sprintf("%d/%d", c.ExpiryMonth, c.ExpiryYear),
				"last4":  c.Last4,
			}
		}
		return attached, nil
	}
	return nil, malformed(meta, errors.New("completed setup checkout has no saved payment method"))
}

func malformed(meta provider.EventMeta, err error) error {
	return errors.Join(provider.ErrMalformedEvent, fmt.Errorf("paddle: %s %s: %w", meta.Type, meta.ID, err))
}
