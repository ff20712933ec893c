package main

import (
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/billing/pkg/provider"
	"github.com/dmitrymomot/billing/pkg/provider/paddle"
	"github.com/dmitrymomot/billing/pkg/provider/stripe"
)

// newProvider builds the payment provider selected by BILLING_PROVIDER.
func newProvider(cfg appConfig, log *slog.Logger) (provider.PaymentProvider, error) {
	switch cfg.Provider {
	case provider.Stripe:
		return stripe.New(cfg.Stripe, stripe.WithLogger(log))
	case provider.Paddle:
		return paddle.New(cfg.Paddle, paddle.WithLogger(log))
	default:
		return nil, fmt.Errorf("%w: %q", provider.ErrUnknownProvider, cfg.Provider)
	}
}
