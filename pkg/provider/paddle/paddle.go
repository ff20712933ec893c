package paddle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	paddlesdk "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/google/uuid"

	"github.com/dmitrymomot/billing/pkg/logger"
	"github.com/dmitrymomot/billing/pkg/provider"
)

// Custom data keys attached to Paddle transactions.
const (
	customUserID        = "user_id"
	customTransactionID = "transaction_id"
	customPurpose       = "purpose"
	purposeSetup        = "payment_method"
)

// Provider implements provider.PaymentProvider on Paddle Billing.
// Paddle only collects payments through hosted checkout, so Charge returns a
// checkout URL and settlement arrives with transaction webhooks.
type Provider struct {
	client       *paddlesdk.SDK
	verifier     *paddlesdk.WebhookVerifier
	setupPriceID string
	logger       *slog.Logger
}

var _ provider.PaymentProvider = (*Provider)(nil)

// Option configures the Paddle provider.
type Option func(*options)

type options struct {
	sdkOptions []paddlesdk.Option
	logger     *slog.Logger
}

// WithBaseURL points the client at another API host.
func WithBaseURL(url string) Option {
	return func(o *options) { o.sdkOptions = append(o.sdkOptions, paddlesdk.WithBaseURL(url)) }
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// New returns a Paddle provider for the configured environment.
func New(cfg Config, opts ...Option) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: logger.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		client *paddlesdk.SDK
		err    error
	)
	if strings.EqualFold(cfg.Environment, "sandbox") {
		client, err = paddlesdk.NewSandbox(cfg.APIKey, o.sdkOptions...)
	} else {
		client, err = paddlesdk.New(cfg.APIKey, o.sdkOptions...)
	}
	if err != nil {
		return nil, fmt.Errorf("paddle: create client: %w", err)
	}

	return &Provider{
		client:       client,
		verifier:     paddlesdk.NewWebhookVerifier(cfg.WebhookSecret),
		setupPriceID: cfg.SetupPriceID,
		logger:       o.logger.With(logger.Component("paddle")),
	}, nil
}

func (p *Provider) Name() string { return provider.Paddle }

// AddPaymentMethod opens a checkout for the setup price. The card used there
// is reported by the transaction.completed event.
func (p *Provider) AddPaymentMethod(ctx context.Context, userID uuid.UUID, _ string, returnURL string) (*provider.MethodForm, error) {
	if p.setupPriceID == "" {
		return nil, provider.ErrNotSupported
	}
	url, _, err := p.checkout(ctx, p.setupPriceID, returnURL, paddlesdk.CustomData{
		customUserID:  userID.String(),
		customPurpose: purposeSetup,
	})
	if err != nil {
		return nil, err
	}
	return &provider.MethodForm{RedirectURL: url}, nil
}

// RemovePaymentMethod is not available through the Paddle API; customers
// manage saved cards in the Paddle customer portal.
func (p *Provider) RemovePaymentMethod(context.Context, uuid.UUID, string) error {
	return provider.ErrNotSupported
}

// Charge creates a Paddle transaction for the plan's catalog price and returns
// its checkout URL. The local transaction id travels in custom data.
func (p *Provider) Charge(ctx context.Context, req provider.ChargeRequest) (*provider.ChargeResult, error) {
	if req.ProviderPriceID == "" {
		return nil, errors.Join(provider.ErrNotSupported, errors.New("paddle: plan has no catalog price"))
	}

	data := paddlesdk.CustomData{
		customUserID:        req.UserID.String(),
		customTransactionID: req.IdempotencyKey,
	}
	for k, v := range req.Metadata {
		data[k] = v
	}
	url, id, err := p.checkout(ctx, req.ProviderPriceID, "", data)
	if err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "paddle checkout created",
		logger.UserID(req.UserID),
		logger.TransactionID(req.IdempotencyKey),
		slog.String("paddle_transaction", id),
	)
	return &provider.ChargeResult{ProviderTransactionID: id, CheckoutURL: url}, nil
}

// Refund is issued from the Paddle dashboard; the resulting adjustment events
// are still reconciled.
func (p *Provider) Refund(context.Context, string, string) error {
	return provider.ErrNotSupported
}

func (p *Provider) checkout(ctx context.Context, priceID, returnURL string, data paddlesdk.CustomData) (url, id string, err error) {
	item := paddlesdk.NewCreateTransactionItemsTransactionItemFromCatalog(&paddlesdk.TransactionItemFromCatalog{
		PriceID:  priceID,
		Quantity: 1,
	})
	req := &paddlesdk.CreateTransactionRequest{
		Items:      []paddlesdk.CreateTransactionItems{*item},
		CustomData: data,
	}
	if returnURL != "" {
		req.Checkout = &paddlesdk.TransactionCheckout{URL: paddlesdk.PtrTo(returnURL)}
	}

	txn, err := p.client.TransactionsClient.CreateTransaction(ctx, req)
	if err != nil {
		return "", "", provider.Unavailable(fmt.Errorf("paddle: create transaction: %w", err))
	}
	if txn.Checkout == nil || txn.Checkout.URL == nil {
		return "", "", errors.New("paddle: no checkout URL returned")
	}
	return *txn.Checkout.URL, txn.ID, nil
}
