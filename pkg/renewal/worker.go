package renewal

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billing/pkg/ledger"
	"github.com/dmitrymomot/billing/pkg/logger"
	"github.com/dmitrymomot/billing/pkg/subscription"
)

// Engine is the part of the subscription engine the worker drives.
type Engine interface {
	ChargeDue(ctx context.Context, userID, planID uuid.UUID) (*subscription.SubscribeResult, error)
	Expire(ctx context.Context, userID, subscriptionID uuid.UUID) (bool, error)
}

// Report summarises one pass.
type Report struct {
	Due     int
	Charged int
	Skipped int
	Lapsed  int
	Expired int
	Failed  int
}

// Worker periodically charges auto-renewing subscriptions that reached their
// expiry date and ends the ones whose auto-renewal is off once they lapse.
// Charges settle through payment webhooks like any other.
type Worker struct {
	store     ledger.Store
	engine    Engine
	interval  time.Duration
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithClock overrides the clock used to decide what is due.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWorker panics when store or engine is nil. Zero config fields take the
// env defaults.
func NewWorker(store ledger.Store, engine Engine, cfg Config, opts ...Option) *Worker {
	if store == nil {
		panic("renewal: ledger store is required")
	}
	if engine == nil {
		panic("renewal: subscription engine is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	w := &Worker{
		store:     store,
		engine:    engine,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		now:       time.Now,
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logger.Component("renewal"))
	return w
}

// Run renews once immediately and then on every tick until ctx is done.
// It returns ctx.Err().
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "renewal worker stopped")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	start := time.Now()
	report, err := w.RunOnce(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "listing due subscriptions failed", logger.Error(err))
		return
	}
	if report.Due > 0 || report.Lapsed > 0 {
		w.logger.InfoContext(ctx, "renewal pass finished",
			slog.Int("due", report.Due),
			slog.Int("charged", report.Charged),
			slog.Int("skipped", report.Skipped),
			slog.Int("lapsed", report.Lapsed),
			slog.Int("expired", report.Expired),
			slog.Int("failed", report.Failed),
			logger.Duration(time.Since(start)),
		)
	}
}

// RunOnce charges one batch of due subscriptions and expires one batch of
// lapsed ones. A failed item is logged and does not stop the batch; only
// listing errors are returned.
func (w *Worker) RunOnce(ctx context.Context) (Report, error) {
	var due, lapsed []ledger.Subscription
	err := w.store.InTx(ctx, uuid.Nil, func(ctx context.Context, tx ledger.Tx) error {
		today := ledger.Date(w.now())
		var err error
		if due, err = tx.ListDueSubscriptions(ctx, today, w.batchSize); err != nil {
			return err
		}
		lapsed, err = tx.ListLapsedSubscriptions(ctx, today, w.batchSize)
		return err
	})
	if err != nil {
		return Report{}, err
	}

	report := Report{Due: len(due), Lapsed: len(lapsed)}
	for _, sub := range due {
		if ctx.Err() != nil {
			return report, nil
		}
		if sub.RenewTo != nil {
			w.charge(ctx, sub, &report)
		}
	}
	for _, sub := range lapsed {
		if ctx.Err() != nil {
			return report, nil
		}
		w.expire(ctx, sub, &report)
	}
	return report, nil
}

func (w *Worker) charge(ctx context.Context, sub ledger.Subscription, report *Report) {
	log := w.logger.With(
		logger.UserID(sub.UserID),
		logger.SubscriptionID(sub.ID),
		logger.PlanID(*sub.RenewTo),
	)
	res, err := w.engine.ChargeDue(ctx, sub.UserID, *sub.RenewTo)
	switch {
	case errors.Is(err, subscription.ErrChargeInFlight), errors.Is(err, subscription.ErrRenewalBackoff):
		report.Skipped++
		log.InfoContext(ctx, "renewal charge held back", logger.Error(err))
	case err != nil:
		report.Failed++
		log.WarnContext(ctx, "renewal charge failed", logger.Error(err))
	default:
		report.Charged++
		attrs := []any{slog.String("branch", string(res.Branch))}
		if res.Transaction != nil {
			attrs = append(attrs, logger.TransactionID(res.Transaction.ID))
		}
		log.InfoContext(ctx, "renewal charged", attrs...)
	}
}

func (w *Worker) expire(ctx context.Context, sub ledger.Subscription, report *Report) {
	expired, err := w.engine.Expire(ctx, sub.UserID, sub.ID)
	if err != nil {
		report.Failed++
		w.logger.WarnContext(ctx, "subscription expiry failed",
			logger.UserID(sub.UserID),
			logger.SubscriptionID(sub.ID),
			logger.Error(err),
		)
		return
	}
	if expired {
		report.Expired++
	}
}
