package stripe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	stripesdk "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/dmitrymomot/billing/pkg/logger"
	"github.com/dmitrymomot/billing/pkg/provider"
)

// Provider charges saved cards through Stripe PaymentIntents.
// Stripe customers are created with the billing user id as their id, so every
// event's customer field is the user id.
type Provider struct {
	api            *client.API
	publishableKey string
	webhookSecret  string
	logger         *slog.Logger
}

var _ provider.PaymentProvider = (*Provider)(nil)

// Option configures the Stripe provider.
type Option func(*options)

type options struct {
	backendURL string
	logger     *slog.Logger
}

// WithBackendURL points the client at another API host, e.g. stripe-mock.
func WithBackendURL(url string) Option {
	return func(o *options) { o.backendURL = url }
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// New returns a Stripe provider. The config must be valid.
func New(cfg Config, opts ...Option) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: logger.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	var backends *stripesdk.Backends
	if o.backendURL != "" {
		backend := stripesdk.GetBackendWithConfig(stripesdk.APIBackend, &stripesdk.BackendConfig{
			URL:               stripesdk.String(o.backendURL),
			MaxNetworkRetries: stripesdk.Int64(0),
			LeveledLogger:     &stripesdk.LeveledLogger{Level: stripesdk.LevelNull},
		})
		backends = &stripesdk.Backends{API: backend, Connect: backend, Uploads: backend}
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, backends)

	return &Provider{
		api:            api,
		publishableKey: cfg.PublishableKey,
		webhookSecret:  cfg.WebhookSecret,
		logger:         o.logger.With(logger.Component("stripe")),
	}, nil
}

func (p *Provider) Name() string { return provider.Stripe }

// AddPaymentMethod creates a SetupIntent for the user's customer and renders
// the card form that confirms it. The card arrives with payment_method.attached.
func (p *Provider) AddPaymentMethod(ctx context.Context, userID uuid.UUID, buttonText, returnURL string) (*provider.MethodForm, error) {
	customerID, err := p.ensureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	params := &stripesdk.SetupIntentParams{
		Customer:           stripesdk.String(customerID),
		PaymentMethodTypes: []*string{stripesdk.String("card")},
	}
	params.Context = ctx
	si, err := p.api.SetupIntents.New(params)
	if err != nil {
		return nil, mapError("create setup intent", err, provider.ErrUpstreamUnavailable)
	}

	var sb strings.Builder
	err = addCardForm(cardForm{
		ButtonText:     buttonText,
		PublishableKey: p.publishableKey,
		ClientSecret:   si.ClientSecret,
		ReturnURL:      returnURL,
	}).Render(ctx, &sb)
	if err != nil {
		return nil, fmt.Errorf("stripe: render card form: %w", err)
	}
	return &provider.MethodForm{HTML: sb.String()}, nil
}

// RemovePaymentMethod detaches the card after checking it belongs to the user.
// The registry is updated by the payment_method.detached event.
func (p *Provider) RemovePaymentMethod(ctx context.Context, userID uuid.UUID, providerMethodID string) error {
	if err := p.checkOwner(ctx, userID, providerMethodID); err != nil {
		return err
	}
	params := &stripesdk.PaymentMethodDetachParams{}
	params.Context = ctx
	if _, err := p.api.PaymentMethods.Detach(providerMethodID, params); err != nil {
		return mapError("detach payment method", err, provider.ErrPaymentMethodNotFound)
	}
	return nil
}

// Charge confirms an off-session PaymentIntent. The local transaction id is both
// the idempotency key and the transaction_id metadata echoed by webhooks.
func (p *Provider) Charge(ctx context.Context, req provider.ChargeRequest) (*provider.ChargeResult, error) {
	if err := p.checkOwner(ctx, req.UserID, req.ProviderMethodID); err != nil {
		return nil, err
	}

	params := &stripesdk.PaymentIntentParams{
		Amount:        stripesdk.Int64(req.Amount),
		Currency:      stripesdk.String(req.Currency),
		Customer:      stripesdk.String(req.UserID.String()),
		PaymentMethod: stripesdk.String(req.ProviderMethodID),
		Confirm:       stripesdk.Bool(true),
		OffSession:    stripesdk.Bool(true),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.AddMetadata("transaction_id", req.IdempotencyKey)

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, mapError("create payment intent", err, provider.ErrPaymentMethodNotFound)
	}

	p.logger.InfoContext(ctx, "payment intent created",
		logger.UserID(req.UserID),
		logger.TransactionID(req.IdempotencyKey),
		slog.String("payment_intent", pi.ID),
		slog.String("status", string(pi.Status)),
	)
	return &provider.ChargeResult{ProviderTransactionID: pi.ID}, nil
}

// Refund refunds a PaymentIntent in full.
func (p *Provider) Refund(ctx context.Context, providerTransactionID, reason string) error {
	params := &stripesdk.RefundParams{PaymentIntent: stripesdk.String(providerTransactionID)}
	params.Context = ctx
	params.AddMetadata("reason", reason)
	if _, err := p.api.Refunds.New(params); err != nil {
		return mapError("create refund", err, provider.ErrTransactionNotFound)
	}
	return nil
}

func (p *Provider) ensureCustomer(ctx context.Context, userID uuid.UUID) (string, error) {
	id := userID.String()
	params := &stripesdk.CustomerParams{}
	params.Context = ctx
	c, err := p.api.Customers.Get(id, params)
	if err == nil {
		return c.ID, nil
	}
	if !isMissing(err) {
		return "", mapError("get customer", err, provider.ErrUpstreamUnavailable)
	}

	create := &stripesdk.CustomerParams{}
	create.Context = ctx
	create.AddExtra("id", id)
	create.AddMetadata("user_id", id)
	c, err = p.api.Customers.New(create)
	if err != nil {
		return "", mapError("create customer", err, provider.ErrUpstreamUnavailable)
	}
	p.logger.InfoContext(ctx, "stripe customer created", logger.UserID(userID))
	return c.ID, nil
}

func (p *Provider) checkOwner(ctx context.Context, userID uuid.UUID, providerMethodID string) error {
	params := &stripesdk.PaymentMethodParams{}
	params.Context = ctx
	pm, err := p.api.PaymentMethods.Get(providerMethodID, params)
	if err != nil {
		return mapError("get payment method", err, provider.ErrPaymentMethodNotFound)
	}
	if pm.Customer == nil || pm.Customer.ID != userID.String() {
		return provider.ErrPaymentMethodNotFound
	}
	return nil
}

func isMissing(err error) bool {
	var se *stripesdk.Error
	return errors.As(err, &se) && se.Code == stripesdk.ErrorCodeResourceMissing
}

// mapError translates Stripe API errors to provider errors. A missing resource
// is reported as notFound.
func mapError(op string, err error, notFound error) error {
	var se *stripesdk.Error
	if !errors.As(err, &se) {
		return errors.Join(provider.ErrUpstreamUnavailable, fmt.Errorf("stripe: %s: %w", op, err))
	}

	wrapped := fmt.Errorf("stripe: %s: %w", op, err)
	switch {
	case se.Code == stripesdk.ErrorCodeResourceMissing:
		return errors.Join(notFound, wrapped)
	case se.Code == stripesdk.ErrorCodeChargeAlreadyRefunded:
		return errors.Join(provider.ErrAlreadyRefunded, wrapped)
	case se.Type == stripesdk.ErrorTypeCard:
		return errors.Join(provider.ErrChargeDeclined, wrapped)
	case se.HTTPStatusCode >= 500 || se.HTTPStatusCode == 429:
		return errors.Join(provider.ErrUpstreamUnavailable, wrapped)
	default:
		return wrapped
	}
}
