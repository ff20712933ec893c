package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billing/pkg/archive"
	"github.com/dmitrymomot/billing/pkg/ledger"
	"github.com/dmitrymomot/billing/pkg/logger"
	"github.com/dmitrymomot/billing/pkg/paymentmethod"
	"github.com/dmitrymomot/billing/pkg/provider"
	"github.com/dmitrymomot/billing/pkg/subscription"
	"github.com/dmitrymomot/billing/pkg/transaction"
)

// Status is the verdict handed back to the provider.
type Status int

const (
	// Ack acknowledges the delivery so the provider stops retrying it.
	Ack Status = iota
	// Rejected marks a delivery that failed parsing or signature checks.
	Rejected
)

func (s Status) String() string {
	if s == Rejected {
		return "rejected"
	}
	return "ack"
}

// Outcome is the result of handling one delivery. Err carries the failure
// behind a Rejected status, or an internal error that was acknowledged anyway.
type Outcome struct {
	Status Status
	Err    error
}

// Lifecycle is the part of the subscription engine driven by payment events.
type Lifecycle interface {
	Upgrade(ctx context.Context, userID, toPlanID uuid.UUID) error
	Cancel(ctx context.Context, userID uuid.UUID) error
}

// Reconciler applies provider webhook deliveries to the ledger.
type Reconciler struct {
	store        ledger.Store
	provider     provider.PaymentProvider
	registry     *paymentmethod.Registry
	transactions *transaction.Manager
	lifecycle    Lifecycle
	dedup        Deduplicator
	archive      archive.Archive
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithDeduplicator skips deliveries whose event id was processed before.
func WithDeduplicator(d Deduplicator) Option {
	return func(r *Reconciler) {
		r.dedup = d
	}
}

// WithArchive stores a raw copy of every verified delivery.
func WithArchive(a archive.Archive) Option {
	return func(r *Reconciler) {
		r.archive = a
	}
}

// WithClock overrides the time source used for archive keys.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// New panics when a dependency is nil.
func New(
	store ledger.Store,
	p provider.PaymentProvider,
	registry *paymentmethod.Registry,
	transactions *transaction.Manager,
	lifecycle Lifecycle,
	opts ...Option,
) *Reconciler {
	switch {
	case store == nil:
		panic("reconciler: ledger store is required")
	case p == nil:
		panic("reconciler: payment provider is required")
	case registry == nil:
		panic("reconciler: payment method registry is required")
	case transactions == nil:
		panic("reconciler: transaction manager is required")
	case lifecycle == nil:
		panic("reconciler: lifecycle engine is required")
	}

	r := &Reconciler{
		store:        store,
		provider:     p,
		registry:     registry,
		transactions: transactions,
		lifecycle:    lifecycle,
		logger:       logger.Discard(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logger.Component("reconciler"), logger.Provider(p.Name()))
	return r
}

// Handle verifies, decodes and applies one delivery.
//
// Only unparseable or unsigned deliveries are rejected. Everything else is
// acknowledged once the ledger update has been applied or found redundant;
// internal failures are logged and reported in Outcome.Err.
func (r *Reconciler) Handle(ctx context.Context, payload []byte, header http.Header) Outcome {
	ev, err := r.provider.ParseEvent(ctx, payload, header)
	if err != nil {
		r.logger.WarnContext(ctx, "webhook rejected", logger.Error(err))
		if !errors.Is(err, provider.ErrMalformedEvent) {
			err = errors.Join(provider.ErrMalformedEvent, err)
		}
		return Outcome{Status: Rejected, Err: err}
	}

	meta := ev.Meta()
	log := r.logger.With(logger.EventID(meta.ID), logger.EventType(meta.Type))
	r.keep(ctx, log, meta, payload)

	claimed := false
	if r.dedup != nil && meta.ID != "" {
		first, err := r.dedup.Claim(ctx, r.provider.Name(), meta.ID)
		switch {
		case err != nil:
			log.WarnContext(ctx, "event dedup unavailable", logger.Error(err))
		case !first:
			log.InfoContext(ctx, "duplicate event delivery skipped")
			return Outcome{Status: Ack}
		default:
			claimed = true
		}
	}

	if err := r.dispatch(ctx, log, ev); err != nil {
		log.ErrorContext(ctx, "webhook processing failed", logger.Error(err))
		if claimed {
			if rerr := r.dedup.Release(context.WithoutCancel(ctx), r.provider.Name(), meta.ID); rerr != nil {
				log.WarnContext(ctx, "event dedup release failed", logger.Error(rerr))
			}
		}
		return Outcome{Status: Ack, Err: err}
	}
	return Outcome{Status: Ack}
}

// keep archives the raw delivery. Archive failures never block processing.
func (r *Reconciler) keep(ctx context.Context, log *slog.Logger, meta provider.EventMeta, payload []byte) {
	if r.archive == nil {
		return
	}
	key := archive.WebhookKey(r.provider.Name(), meta.ID, r.now())
	if err := r.archive.Put(ctx, key, payload); err != nil {
		log.WarnContext(ctx, "webhook archive failed", logger.Error(err), slog.String("key", key))
	}
}

func (r *Reconciler) dispatch(ctx context.Context, log *slog.Logger, ev provider.Event) error {
	switch ev := ev.(type) {
	case provider.MethodAttached:
		return r.methodAttached(ctx, log, ev)
	case provider.MethodDetached:
		return r.methodDetached(ctx, log, ev)
	case provider.PaymentProcessing:
		_, err := r.paymentStatus(ctx, log, ev.Payment, ledger.StatusProcessing, nil)
		return err
	case provider.PaymentFailed:
		_, err := r.paymentStatus(ctx, log, ev.Payment, ledger.StatusFailed, nil)
		return err
	case provider.PaymentSucceeded:
		_, err := r.paymentStatus(ctx, log, ev.Payment, ledger.StatusSucceeded, func(ctx context.Context, t *ledger.Transaction) error {
			return r.lifecycle.Upgrade(ctx, t.UserID, t.PlanID)
		})
		return err
	case provider.ChargeRefunded:
		return r.chargeRefunded(ctx, log, ev)
	case provider.Unhandled:
		log.WarnContext(ctx, "unhandled event acknowledged")
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
}

func (r *Reconciler) methodAttached(ctx context.Context, log *slog.Logger, ev provider.MethodAttached) error {
	_, err := r.registry.Add(ctx, ev.UserID, r.provider.Name(), ev.ProviderMethodID, ledger.PaymentMethodType(ev.MethodType), ev.Payload)
	if ledger.IsDuplicate(err) {
		log.InfoContext(ctx, "payment method already saved", logger.UserID(ev.UserID))
		return nil
	}
	return err
}

func (r *Reconciler) methodDetached(ctx context.Context, log *slog.Logger, ev provider.MethodDetached) error {
	userID := ev.UserID
	if userID == uuid.Nil {
		owner, err := r.registry.Owner(ctx, r.provider.Name(), ev.ProviderMethodID)
		if errors.Is(err, paymentmethod.ErrPaymentMethodNotFound) {
			log.InfoContext(ctx, "detached payment method is unknown")
			return nil
		}
		if err != nil {
			return err
		}
		userID = owner
	}

	removed, err := r.registry.Remove(ctx, userID, r.provider.Name(), ev.ProviderMethodID)
	if err != nil {
		return err
	}
	if !removed {
		log.InfoContext(ctx, "detached payment method already removed", logger.UserID(userID))
	}
	return nil
}

// paymentStatus moves the transaction to status and, when the status actually
// moved, runs then in the same ledger transaction. A redelivered event finds
// the status unchanged and does not run then again.
func (r *Reconciler) paymentStatus(
	ctx context.Context,
	log *slog.Logger,
	p provider.Payment,
	status ledger.TransactionStatus,
	then func(ctx context.Context, t *ledger.Transaction) error,
) (*transaction.Result, error) {
	var ref *string
	if p.ProviderTransactionID != "" {
		ref = &p.ProviderTransactionID
	}

	var res *transaction.Result
	err := r.store.InTx(ctx, p.UserID, func(ctx context.Context, _ ledger.Tx) error {
		var err error
		res, err = r.transactions.UpdateByProviderCallback(ctx, p.UserID, p.TransactionID, transaction.Update{
			ProviderTransactionID: ref,
			Status:                status,
		})
		if err != nil {
			return err
		}
		if !res.Changed || then == nil {
			return nil
		}
		return then(ctx, res.Transaction)
	})
	if errors.Is(err, transaction.ErrTransactionNotFound) {
		log.WarnContext(ctx, "payment event for unknown transaction",
			logger.UserID(p.UserID),
			logger.TransactionID(p.TransactionID),
		)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !res.Changed {
		log.InfoContext(ctx, "payment event changed nothing",
			logger.TransactionID(p.TransactionID),
			slog.String("status", res.Transaction.Status.String()),
		)
	}
	return res, nil
}

func (r *Reconciler) chargeRefunded(ctx context.Context, log *slog.Logger, ev provider.ChargeRefunded) error {
	p := provider.Payment{
		EventMeta:             ev.EventMeta,
		UserID:                ev.UserID,
		TransactionID:         ev.TransactionID,
		ProviderTransactionID: ev.ProviderTransactionID,
	}
	if p.TransactionID == uuid.Nil || p.UserID == uuid.Nil {
		t, err := r.transactions.FindByProviderID(ctx, r.provider.Name(), ev.ProviderTransactionID)
		if errors.Is(err, transaction.ErrTransactionNotFound) {
			log.WarnContext(ctx, "refund for unknown transaction")
			return nil
		}
		if err != nil {
			return err
		}
		p.TransactionID, p.UserID = t.ID, t.UserID
	}

	_, err := r.paymentStatus(ctx, log, p, ledger.StatusRefunded, func(ctx context.Context, t *ledger.Transaction) error {
		err := r.lifecycle.Cancel(ctx, t.UserID)
		if errors.Is(err, subscription.ErrNoActiveSubscription) {
			log.WarnContext(ctx, "refund without an active subscription", logger.UserID(t.UserID))
			return nil
		}
		return err
	})
	return err
}
