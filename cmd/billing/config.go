package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/billing/pkg/archive"
	"github.com/dmitrymomot/billing/pkg/entitlement"
	"github.com/dmitrymomot/billing/pkg/httpserver"
	"github.com/dmitrymomot/billing/pkg/pg"
	"github.com/dmitrymomot/billing/pkg/provider"
	"github.com/dmitrymomot/billing/pkg/provider/paddle"
	"github.com/dmitrymomot/billing/pkg/provider/stripe"
	"github.com/dmitrymomot/billing/pkg/redis"
	"github.com/dmitrymomot/billing/pkg/renewal"
	"github.com/dmitrymomot/billing/pkg/subscription"
)

type appConfig struct {
	Env             string        `env:"APP_ENV" envDefault:"development"`
	Name            string        `env:"APP_NAME" envDefault:"billing"`
	Provider        string        `env:"BILLING_PROVIDER" envDefault:"stripe"`
	ProviderTimeout time.Duration `env:"BILLING_PROVIDER_TIMEOUT" envDefault:"15s"`
	Proration       string        `env:"BILLING_PRORATION" envDefault:"none"`
	JWTSecret       string        `env:"JWT_SECRET,required"`
	DedupTTL        time.Duration `env:"WEBHOOK_DEDUP_TTL" envDefault:"72h"`

	HTTP        httpserver.Config
	Postgres    pg.Config
	Redis       redis.Config
	Stripe      stripe.Config
	Paddle      paddle.Config
	Entitlement entitlement.Config
	Renewal     renewal.Config
	Archive     archive.Config
}

func (c appConfig) Validate() error {
	var errs []error
	switch c.Provider {
	case provider.Stripe, provider.Paddle:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", provider.ErrUnknownProvider, c.Provider))
	}
	if _, err := subscription.ProrationByName(c.Proration); err != nil {
		errs = append(errs, err)
	}
	if c.DedupTTL <= 0 {
		errs = append(errs, errors.New("WEBHOOK_DEDUP_TTL must be positive"))
	}
	if err := c.Entitlement.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Renewal.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Archive.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
