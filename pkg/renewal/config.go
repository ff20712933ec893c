package renewal

import (
	"errors"
	"time"

	"github.com/dmitrymomot/billing/pkg/subscription"
)

// Config controls how often and how much the worker renews, and how often a
// declined renewal is retried.
type Config struct {
	Interval     time.Duration `env:"RENEWAL_INTERVAL" envDefault:"1h"`
	BatchSize    int           `env:"RENEWAL_BATCH_SIZE" envDefault:"100"`
	MaxAttempts  int           `env:"RENEWAL_MAX_ATTEMPTS" envDefault:"3"`
	RetryBackoff time.Duration `env:"RENEWAL_RETRY_BACKOFF" envDefault:"24h"`
}

func (c Config) Validate() error {
	if c.Interval <= 0 {
		return errors.New("renewal: interval must be positive")
	}
	if c.BatchSize <= 0 {
		return errors.New("renewal: batch size must be positive")
	}
	if c.MaxAttempts <= 0 {
		return errors.New("renewal: max attempts must be positive")
	}
	if c.RetryBackoff < 0 {
		return errors.New("renewal: retry backoff must not be negative")
	}
	return nil
}

// RetryPolicy is the engine policy described by the config.
func (c Config) RetryPolicy() subscription.RetryPolicy {
	return subscription.RetryPolicy{MaxAttempts: c.MaxAttempts, Backoff: c.RetryBackoff}
}
