package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 15 * time.Second

type timeoutProvider struct {
	next    PaymentProvider
	timeout time.Duration
}

// WithTimeout bounds every outbound call of p by d and reports deadlines and
// transport failures as ErrUpstreamUnavailable. ParseEvent is not bounded.
// A non-positive d uses DefaultTimeout.
func WithTimeout(p PaymentProvider, d time.Duration) PaymentProvider {
	if p == nil {
		panic("provider: nil provider")
	}
	if d <= 0 {
		d = DefaultTimeout
	}
	if t, ok := p.(*timeoutProvider); ok {
		return &timeoutProvider{next: t.next, timeout: d}
	}
	return &timeoutProvider{next: p, timeout: d}
}

func (t *timeoutProvider) Name() string { return t.next.Name() }

func (t *timeoutProvider) AddPaymentMethod(ctx context.Context, userID uuid.UUID, buttonText, returnURL string) (*MethodForm, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	form, err := t.next.AddPaymentMethod(ctx, userID, buttonText, returnURL)
	return form, Unavailable(err)
}

func (t *timeoutProvider) RemovePaymentMethod(ctx context.Context, userID uuid.UUID, providerMethodID string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return Unavailable(t.next.RemovePaymentMethod(ctx, userID, providerMethodID))
}

func (t *timeoutProvider) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	res, err := t.next.Charge(ctx, req)
	return res, Unavailable(err)
}

func (t *timeoutProvider) Refund(ctx context.Context, providerTransactionID, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return Unavailable(t.next.Refund(ctx, providerTransactionID, reason))
}

func (t *timeoutProvider) ParseEvent(ctx context.Context, payload []byte, header http.Header) (Event, error) {
	return t.next.ParseEvent(ctx, payload, header)
}
