package billing

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/billing/pkg/httpserver"
	"github.com/dmitrymomot/billing/pkg/jwt"
	"github.com/dmitrymomot/billing/pkg/logger"
	"github.com/dmitrymomot/billing/pkg/paymentmethod"
	"github.com/dmitrymomot/billing/pkg/permission"
	"github.com/dmitrymomot/billing/pkg/provider"
	"github.com/dmitrymomot/billing/pkg/reconciler"
	"github.com/dmitrymomot/billing/pkg/requestid"
	"github.com/dmitrymomot/billing/pkg/subscription"
	"github.com/dmitrymomot/billing/pkg/transaction"
)

// MaxWebhookBody caps the size of a provider delivery.
const MaxWebhookBody = 1 << 20

// RouterOptions wires the billing services into the HTTP surface.
// Every field except Logger and HealthChecks is required.
type RouterOptions struct {
	Engine         *subscription.Engine
	PaymentMethods *paymentmethod.Registry
	Transactions   *transaction.Manager
	Provider       provider.PaymentProvider
	Reconciler     *reconciler.Reconciler
	Auth           *jwt.Service

	Logger *slog.Logger
	// HealthChecks are run by /health/ready.
	HealthChecks       map[string]httpserver.Check
	HealthCheckTimeout time.Duration
}

type handlers struct {
	engine       *subscription.Engine
	methods      *paymentmethod.Registry
	transactions *transaction.Manager
	provider     provider.PaymentProvider
	reconciler   *reconciler.Reconciler
	logger       *slog.Logger
}

// Router builds the billing router. It panics when a required service is missing.
//
//	r := chi.NewRouter()
//	r.Mount("/", billing.Router(billing.RouterOptions{
//	    Engine:         engine,
//	    PaymentMethods: registry,
//	    Transactions:   manager,
//	    Provider:       p,
//	    Reconciler:     rec,
//	    Auth:           tokens,
//	}))
func Router(opts RouterOptions) chi.Router {
	switch {
	case opts.Engine == nil:
		panic("billing: subscription engine is required")
	case opts.PaymentMethods == nil:
		panic("billing: payment method registry is required")
	case opts.Transactions == nil:
		panic("billing: transaction manager is required")
	case opts.Provider == nil:
		panic("billing: payment provider is required")
	case opts.Reconciler == nil:
		panic("billing: reconciler is required")
	case opts.Auth == nil:
		panic("billing: token service is required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.HealthCheckTimeout <= 0 {
		opts.HealthCheckTimeout = 5 * time.Second
	}

	h := &handlers{
		engine:       opts.Engine,
		methods:      opts.PaymentMethods,
		transactions: opts.Transactions,
		provider:     opts.Provider,
		reconciler:   opts.Reconciler,
		logger:       opts.Logger.With(logger.Component("http")),
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware, middleware.Recoverer, h.logRequests)

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(h.logger, opts.HealthCheckTimeout, opts.HealthChecks))

	r.Get("/plans", h.listPlans)
	r.Get("/plans/{id}", h.getPlan)

	r.Post("/webhooks/{provider}", h.webhook)

	r.Route("/customer", func(r chi.Router) {
		r.Use(jwt.Middleware(opts.Auth))

		r.Get("/payment-methods", h.listPaymentMethods)
		r.Post("/payment-methods", h.addPaymentMethod)
		r.Post("/payment-methods/{id}/default", h.setDefaultPaymentMethod)
		r.Delete("/payment-methods/{id}", h.removePaymentMethod)

		r.Get("/subscription", h.currentSubscription)
		r.Put("/subscription/renew", h.renew)
		r.Delete("/subscription", h.unsubscribe)
		r.Post("/subscription/{plan_id}", h.subscribe)

		r.Get("/transactions", h.listTransactions)
	})

	r.Route("/backoffice", func(r chi.Router) {
		r.Use(jwt.Middleware(opts.Auth), permission.Require(jwt.Permissions, permission.BackofficeManager))

		r.Post("/refund/{transaction_id}", h.refund)
		r.Delete("/subscription/{subscription_id}", h.adminCancel)
	})

	return r
}

func (h *handlers) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.DebugContext(r.Context(), "request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			logger.Duration(time.Since(start)),
		)
	})
}
