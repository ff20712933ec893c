package entitlement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billing/pkg/logger"
	"github.com/dmitrymomot/billing/pkg/retry"
)

// Client pushes permission ranks to the auth service:
//
//	PATCH {AUTH_API_URL}/users/{user_id}/content_permission_rank/{rank}
//
// Transport errors, 5xx and 429 answers are retried with exponential backoff.
// A circuit breaker stops hammering a service that keeps failing.
type Client struct {
	baseURL    *url.URL
	token      string
	http       *http.Client
	maxRetries int
	backoff    retry.Backoff
	breaker    *retry.CircuitBreaker
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its timeout applies per attempt.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithBackoff overrides the delay between attempts.
func WithBackoff(b retry.Backoff) Option {
	return func(cl *Client) {
		if b != nil {
			cl.backoff = b
		}
	}
}

// WithCircuitBreaker replaces the default breaker. Nil disables it.
func WithCircuitBreaker(cb *retry.CircuitBreaker) Option {
	return func(cl *Client) {
		cl.breaker = cb
	}
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// New validates cfg and builds a client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.Join(ErrInvalidBaseURL, err)
	}

	c := &Client{
		baseURL:    base,
		token:      cfg.Token,
		http:       &http.Client{Timeout: cfg.Timeout},
		maxRetries: max(cfg.MaxRetries, 0),
		backoff:    retry.DefaultBackoff(),
		breaker:    retry.NewCircuitBreaker(5, 1, 30*time.Second),
		logger:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("entitlement"))
	return c, nil
}

// SetUserPermissionRank sets the user's content permission rank. Zero revokes access.
func (c *Client) SetUserPermissionRank(ctx context.Context, userID uuid.UUID, rank int) error {
	if rank < 0 {
		return fmt.Errorf("%w: negative rank %d", ErrRejected, rank)
	}
	endpoint := c.baseURL.JoinPath("users", userID.String(), "content_permission_rank", strconv.Itoa(rank))

	opts := []retry.Option{
		retry.WithMaxRetries(c.maxRetries),
		retry.WithBackoff(c.backoff),
		retry.WithOnRetry(func(attempt int, err error) {
			c.logger.WarnContext(ctx, "retrying entitlement update",
				logger.UserID(userID),
				slog.Int("attempt", attempt),
				logger.Error(err),
			)
		}),
	}
	if c.breaker != nil {
		opts = append(opts, retry.WithCircuitBreaker(c.breaker))
	}

	err := retry.Do(ctx, func(ctx context.Context) error {
		return c.patch(ctx, endpoint.String())
	}, opts...)
	if err != nil {
		if !errors.Is(err, ErrRejected) && !errors.Is(err, ErrUnavailable) {
			err = errors.Join(ErrUnavailable, err)
		}
		return err
	}

	c.logger.InfoContext(ctx, "permission rank updated", logger.UserID(userID), slog.Int("rank", rank))
	return nil
}

func (c *Client) patch(ctx context.Context, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, nil)
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		return retry.Permanent(fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(body))))
	}
}
