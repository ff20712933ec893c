package subscription

import (
	"log/slog"
	"time"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the clock used for expiry dates and proration.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithProviderTimeout bounds each payment provider call.
// Non-positive values keep provider.DefaultTimeout.
func WithProviderTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.providerTimeout = d
		}
	}
}

// WithProration sets how much of the current period is credited on upgrade.
// Defaults to NoProration.
func WithProration(fn ProrationFunc) Option {
	return func(e *Engine) {
		if fn != nil {
			e.proration = fn
		}
	}
}

// WithRenewalRetry bounds renewal charge attempts per period.
// Policies with no attempts or a negative backoff are ignored.
func WithRenewalRetry(p RetryPolicy) Option {
	return func(e *Engine) {
		if p.MaxAttempts > 0 && p.Backoff >= 0 {
			e.retry = p
		}
	}
}
