// Package providertest provides a testify mock of provider.PaymentProvider.
package providertest

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/billing/pkg/provider"
)

// Provider is a mock payment provider. Name returns ProviderName, or "stripe"
// when it is empty, without recording a call.
type Provider struct {
	mock.Mock
	ProviderName string
}

var _ provider.PaymentProvider = (*Provider)(nil)

func (m *Provider) Name() string {
	if m.ProviderName == "" {
		return provider.Stripe
	}
	return m.ProviderName
}

func (m *Provider) AddPaymentMethod(ctx context.Context, userID uuid.UUID, buttonText, returnURL string) (*provider.MethodForm, error) {
	args := m.Called(ctx, userID, buttonText, returnURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.MethodForm), args.Error(1)
}

func (m *Provider) RemovePaymentMethod(ctx context.Context, userID uuid.UUID, providerMethodID string) error {
	return m.Called(ctx, userID, providerMethodID).Error(0)
}

func (m *Provider) Charge(ctx context.Context, req provider.ChargeRequest) (*provider.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.ChargeResult), args.Error(1)
}

func (m *Provider) Refund(ctx context.Context, providerTransactionID, reason string) error {
	return m.Called(ctx, providerTransactionID, reason).Error(0)
}

func (m *Provider) ParseEvent(ctx context.Context, payload []byte, header http.Header) (provider.Event, error) {
	args := m.Called(ctx, payload, header)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(provider.Event), args.Error(1)
}
