package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrExhausted   = errors.New("retry attempts exhausted")
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type options struct {
	maxRetries int
	backoff    Backoff
	breaker    *CircuitBreaker
	onRetry    func(attempt int, err error)
}

// Option configures Do.
type Option func(*options)

// WithMaxRetries sets how many times fn is retried after the first call.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithBackoff overrides the delay strategy.
func WithBackoff(b Backoff) Option {
	return func(o *options) {
		if b != nil {
			o.backoff = b
		}
	}
}

// WithCircuitBreaker guards calls with cb. An open breaker fails fast with ErrCircuitOpen.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(o *options) {
		o.breaker = cb
	}
}

// WithOnRetry registers a hook called before each retry, useful for logging.
func WithOnRetry(fn func(attempt int, err error)) Option {
	return func(o *options) {
		o.onRetry = fn
	}
}

// Do calls fn until it succeeds, returns a Permanent error, ctx is done or the
// retry budget runs out. The returned error wraps the last failure.
func Do(ctx context.Context, fn func(ctx context.Context) error, opts ...Option) error {
	o := &options{
		maxRetries: 3,
		backoff:    DefaultBackoff(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.breaker != nil && !o.breaker.Allow() {
		return ErrCircuitOpen
	}

	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			if o.onRetry != nil {
				o.onRetry(attempt, lastErr)
			}
			select {
			case <-ctx.Done():
				return errors.Join(ctx.Err(), lastErr)
			case <-time.After(o.backoff.NextInterval(attempt)):
			}
		}

		err := fn(ctx)
		if o.breaker != nil {
			if err == nil {
				o.breaker.RecordSuccess()
			} else if !IsPermanent(err) {
				o.breaker.RecordFailure()
			}
		}
		if err == nil {
			return nil
		}

		var p *permanentError
		if errors.As(err, &p) {
			return p.err
		}
		lastErr = err
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, o.maxRetries+1, lastErr)
}
