// Command billing serves the subscription billing API, applies provider
// webhooks and charges due renewals.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/billing/modules/billing"
	"github.com/dmitrymomot/billing/pkg/archive"
	"github.com/dmitrymomot/billing/pkg/config"
	"github.com/dmitrymomot/billing/pkg/entitlement"
	"github.com/dmitrymomot/billing/pkg/httpserver"
	"github.com/dmitrymomot/billing/pkg/jwt"
	"github.com/dmitrymomot/billing/pkg/ledger/pgstore"
	"github.com/dmitrymomot/billing/pkg/logger"
	"github.com/dmitrymomot/billing/pkg/paymentmethod"
	"github.com/dmitrymomot/billing/pkg/pg"
	"github.com/dmitrymomot/billing/pkg/provider"
	"github.com/dmitrymomot/billing/pkg/reconciler"
	"github.com/dmitrymomot/billing/pkg/redis"
	"github.com/dmitrymomot/billing/pkg/renewal"
	"github.com/dmitrymomot/billing/pkg/requestid"
	"github.com/dmitrymomot/billing/pkg/subscription"
	"github.com/dmitrymomot/billing/pkg/transaction"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("billing stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.Name),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)

	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg.Postgres, log); err != nil {
		return err
	}

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("redis close failed", logger.Error(err))
		}
	}()

	p, err := newProvider(cfg, log)
	if err != nil {
		return err
	}
	entitlements, err := entitlement.New(cfg.Entitlement, entitlement.WithLogger(log))
	if err != nil {
		return err
	}
	tokens, err := jwt.New(cfg.JWTSecret)
	if err != nil {
		return err
	}
	proration, err := subscription.ProrationByName(cfg.Proration)
	if err != nil {
		return err
	}

	store := pgstore.New(pool)
	registry := paymentmethod.NewRegistry(store, paymentmethod.WithLogger(log))
	transactions := transaction.NewManager(store, transaction.WithLogger(log))
	engine := subscription.NewEngine(store, registry, transactions, p, entitlements,
		subscription.WithLogger(log),
		subscription.WithProviderTimeout(cfg.ProviderTimeout),
		subscription.WithProration(proration),
		subscription.WithRenewalRetry(cfg.Renewal.RetryPolicy()),
	)
	recOpts := []reconciler.Option{
		reconciler.WithLogger(log),
		reconciler.WithDeduplicator(reconciler.NewRedisDeduplicator(rdb, cfg.DedupTTL)),
	}
	deliveries, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		return err
	}
	if deliveries != nil {
		recOpts = append(recOpts, reconciler.WithArchive(deliveries))
	}
	rec := reconciler.New(store, p, registry, transactions, engine, recOpts...)

	router := billing.Router(billing.RouterOptions{
		Engine:         engine,
		PaymentMethods: registry,
		Transactions:   transactions,
		Provider:       provider.WithTimeout(p, cfg.ProviderTimeout),
		Reconciler:     rec,
		Auth:           tokens,
		Logger:         log,
		HealthChecks: map[string]httpserver.Check{
			"postgres": pg.Healthcheck(pool, "plan", "user_subscription", "billing_transaction"),
			"redis":    redis.Healthcheck(rdb),
		},
	})

	worker := renewal.NewWorker(store, engine, cfg.Renewal, renewal.WithLogger(log))
	server := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workerDone := make(chan error, 1)
	go func() {
		workerDone <- worker.Run(ctx)
	}()

	log.InfoContext(ctx, "billing started", logger.Provider(p.Name()), slog.String("addr", cfg.HTTP.Addr))
	serverErr := server.Run(ctx, router)

	// Stop the worker once the server has exited.
	cancel()
	workerErr := <-workerDone
	if errors.Is(workerErr, context.Canceled) {
		workerErr = nil
	}
	return errors.Join(serverErr, workerErr)
}
