package transaction

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billing/pkg/ledger"
	"github.com/dmitrymomot/billing/pkg/logger"
)

// Draft describes a charge about to be sent to the provider.
type Draft struct {
	UserID          uuid.UUID
	PlanID          uuid.UUID
	PaymentMethodID uuid.UUID
	ProviderID      uuid.UUID
	Amount          int64
	Currency        string
}

func (d Draft) validate() error {
	if d.UserID == uuid.Nil || d.PlanID == uuid.Nil || d.PaymentMethodID == uuid.Nil || d.ProviderID == uuid.Nil {
		return ErrInvalidDraft
	}
	if d.Amount < 0 {
		return errors.Join(ErrInvalidDraft, errors.New("negative amount"))
	}
	return nil
}

// Update carries provider-reported fields of a charge.
// A nil ProviderTransactionID leaves the stored one untouched.
type Update struct {
	ProviderTransactionID *string
	Status                ledger.TransactionStatus
}

// Result is the outcome of applying a provider callback.
// Changed is true only when the status actually moved.
type Result struct {
	Transaction *ledger.Transaction
	Changed     bool
}

// Manager hands out idempotency keys for provider charges and applies provider
// callbacks to them.
type Manager struct {
	store  ledger.Store
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager panics when store is nil.
func NewManager(store ledger.Store, opts ...Option) *Manager {
	if store == nil {
		panic("transaction: ledger store is required")
	}
	m := &Manager{store: store, logger: logger.Discard()}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(logger.Component("transaction"))
	return m
}

// GetOrCreateDraft returns the newest DRAFT for the draft's user, plan and
// method, creating one when none exists. It runs inside the caller's
// transaction so the lookup and the insert are atomic with the caller's writes.
// A reused draft keeps its original amount.
func (m *Manager) GetOrCreateDraft(ctx context.Context, tx ledger.TransactionTx, d Draft) (*ledger.Transaction, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}

	existing, err := tx.GetLatestDraft(ctx, d.UserID, d.PlanID, d.PaymentMethodID)
	if err == nil {
		m.logger.DebugContext(ctx, "reusing draft transaction",
			logger.UserID(d.UserID),
			logger.TransactionID(existing.ID),
		)
		return existing, nil
	}
	if !ledger.IsNotFound(err) {
		return nil, err
	}

	t := &ledger.Transaction{
		UserID:          d.UserID,
		PlanID:          d.PlanID,
		PaymentMethodID: d.PaymentMethodID,
		ProviderID:      d.ProviderID,
		Amount:          d.Amount,
		Currency:        d.Currency,
		Status:          ledger.StatusDraft,
	}
	if err := tx.CreateTransaction(ctx, t); err != nil {
		return nil, err
	}
	m.logger.InfoContext(ctx, "draft transaction created",
		logger.UserID(d.UserID),
		logger.PlanID(d.PlanID),
		logger.TransactionID(t.ID),
		logger.Amount(d.Amount, d.Currency),
	)
	return t, nil
}

// Draft is GetOrCreateDraft in its own transaction locked on the user.
func (m *Manager) Draft(ctx context.Context, d Draft) (*ledger.Transaction, error) {
	var t *ledger.Transaction
	err := m.store.InTx(ctx, d.UserID, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		t, err = m.GetOrCreateDraft(ctx, tx, d)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateByProviderCallback applies provider-reported fields to the user's transaction.
// An unknown id, or one owned by another user, yields ErrTransactionNotFound.
// Status moves that the status rules forbid, including repeats, leave the status
// untouched and report Changed=false.
func (m *Manager) UpdateByProviderCallback(ctx context.Context, userID, transactionID uuid.UUID, u Update) (*Result, error) {
	if !statuses.Known(u.Status) {
		return nil, errors.Join(ErrUnknownStatus, errors.New(u.Status.String()))
	}

	var res *Result
	err := m.store.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		t, err := owned(ctx, tx, userID, transactionID)
		if err != nil {
			return err
		}

		dirty := false
		if u.ProviderTransactionID != nil && *u.ProviderTransactionID != "" && t.ProviderTransactionID == nil {
			ref := *u.ProviderTransactionID
			t.ProviderTransactionID = &ref
			dirty = true
		}

		changed := false
		if err := statuses.Check(ctx, t.Status, u.Status); err == nil {
			t.Status = u.Status
			changed, dirty = true, true
		} else {
			m.logger.DebugContext(ctx, "transaction status unchanged",
				logger.TransactionID(t.ID),
				slog.String("status", t.Status.String()),
				slog.String("reported", u.Status.String()),
			)
		}

		if dirty {
			if err := tx.UpdateTransaction(ctx, t); err != nil {
				return err
			}
		}
		res = &Result{Transaction: t, Changed: changed}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Changed {
		m.logger.InfoContext(ctx, "transaction status changed",
			logger.UserID(userID),
			logger.TransactionID(transactionID),
			slog.String("status", res.Transaction.Status.String()),
		)
	}
	return res, nil
}

// AttachProviderID records the provider's reference for a charge it accepted.
// An already attached reference is kept.
func (m *Manager) AttachProviderID(ctx context.Context, userID, transactionID uuid.UUID, providerTransactionID string) error {
	if providerTransactionID == "" {
		return nil
	}
	return m.store.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		t, err := owned(ctx, tx, userID, transactionID)
		if err != nil {
			return err
		}
		if t.ProviderTransactionID != nil {
			return nil
		}
		t.ProviderTransactionID = &providerTransactionID
		return tx.UpdateTransaction(ctx, t)
	})
}

// Get returns the transaction by id regardless of owner.
func (m *Manager) Get(ctx context.Context, transactionID uuid.UUID) (*ledger.Transaction, error) {
	var t *ledger.Transaction
	err := m.store.InTx(ctx, uuid.Nil, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		t, err = tx.GetTransaction(ctx, transactionID)
		return err
	})
	if ledger.IsNotFound(err) {
		return nil, errors.Join(ErrTransactionNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// FindByProviderID resolves a transaction from the provider's own reference.
// Used for events that carry no local transaction id.
func (m *Manager) FindByProviderID(ctx context.Context, providerName, providerTransactionID string) (*ledger.Transaction, error) {
	var t *ledger.Transaction
	err := m.store.InTx(ctx, uuid.Nil, func(ctx context.Context, tx ledger.Tx) error {
		p, err := tx.GetProviderByName(ctx, providerName)
		if err != nil {
			return err
		}
		t, err = tx.GetTransactionByProviderID(ctx, p.ID, providerTransactionID)
		return err
	})
	if ledger.IsNotFound(err) {
		return nil, errors.Join(ErrTransactionNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// List returns the user's transactions, newest first.
func (m *Manager) List(ctx context.Context, userID uuid.UUID) ([]ledger.Transaction, error) {
	var list []ledger.Transaction
	err := m.store.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		list, err = tx.ListTransactions(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

func owned(ctx context.Context, tx ledger.TransactionTx, userID, transactionID uuid.UUID) (*ledger.Transaction, error) {
	t, err := tx.GetTransaction(ctx, transactionID)
	if ledger.IsNotFound(err) {
		return nil, errors.Join(ErrTransactionNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, ErrTransactionNotFound
	}
	return t, nil
}
