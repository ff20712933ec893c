package paddle

import (
	"errors"
	"fmt"
	"strings"
)

// Config holds Paddle Billing credentials.
type Config struct {
	APIKey        string `env:"PADDLE_API_KEY"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
	// SetupPriceID is the catalog price of the checkout used to save a card.
	// Empty disables AddPaymentMethod.
	SetupPriceID string `env:"PADDLE_SETUP_PRICE_ID"`
}

// Validate implements config.Validator.
func (c Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("PADDLE_API_KEY is required"))
	}
	if c.WebhookSecret == "" {
		errs = append(errs, errors.New("PADDLE_WEBHOOK_SECRET is required"))
	}
	switch strings.ToLower(c.Environment) {
	case "", "production", "sandbox":
	default:
		errs = append(errs, fmt.Errorf("invalid PADDLE_ENVIRONMENT %q", c.Environment))
	}
	return errors.Join(errs...)
}
