package paymentmethod

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billing/pkg/ledger"
	"github.com/dmitrymomot/billing/pkg/logger"
)

// Registry is the only writer of saved payment methods.
// Every call runs in a ledger transaction locked on the owning user.
type Registry struct {
	store  ledger.Store
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry panics when store is nil.
func NewRegistry(store ledger.Store, opts ...Option) *Registry {
	if store == nil {
		panic("paymentmethod: ledger store is required")
	}
	r := &Registry{store: store, logger: logger.Discard()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logger.Component("paymentmethod"))
	return r
}

// Get returns an active method owned by userID.
func (r *Registry) Get(ctx context.Context, userID, methodID uuid.UUID) (*ledger.PaymentMethod, error) {
	var pm *ledger.PaymentMethod
	err := r.store.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		pm, err = tx.GetPaymentMethod(ctx, userID, methodID)
		return err
	})
	if err != nil {
		return nil, notFound(err)
	}
	return pm, nil
}

// ListActive returns the user's active methods, newest first.
func (r *Registry) ListActive(ctx context.Context, userID uuid.UUID) ([]ledger.PaymentMethod, error) {
	var methods []ledger.PaymentMethod
	err := r.store.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		methods, err = tx.ListPaymentMethods(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return methods, nil
}

// GetDefault returns the user's default method, or nil when there is none.
func (r *Registry) GetDefault(ctx context.Context, userID uuid.UUID) (*ledger.PaymentMethod, error) {
	var pm *ledger.PaymentMethod
	err := r.store.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		pm, err = DefaultIn(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pm, nil
}

// DefaultIn reads the default method inside an open transaction.
// It returns nil, nil when the user has no default.
func DefaultIn(ctx context.Context, tx ledger.PaymentMethodTx, userID uuid.UUID) (*ledger.PaymentMethod, error) {
	pm, err := tx.GetDefaultPaymentMethod(ctx, userID)
	if ledger.IsNotFound(err) {
		return nil, nil
	}
	return pm, err
}

// ResolveIn picks the method to charge inside an open transaction: methodID
// when given, else the user's default.
func (r *Registry) ResolveIn(ctx context.Context, tx ledger.PaymentMethodTx, userID uuid.UUID, methodID *uuid.UUID) (*ledger.PaymentMethod, error) {
	if methodID != nil {
		pm, err := tx.GetPaymentMethod(ctx, userID, *methodID)
		if err != nil {
			return nil, notFound(err)
		}
		return pm, nil
	}

	pm, err := DefaultIn(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if pm == nil {
		r.logger.DebugContext(ctx, "no default payment method", logger.UserID(userID))
		return nil, ErrNoDefaultPaymentMethod
	}
	return pm, nil
}

// SetDefault makes methodID the user's default. It is a no-op when it already is.
func (r *Registry) SetDefault(ctx context.Context, userID, methodID uuid.UUID) error {
	return r.store.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		pm, err := tx.GetPaymentMethod(ctx, userID, methodID)
		if err != nil {
			return notFound(err)
		}
		if pm.IsDefault {
			return nil
		}

		current, err := DefaultIn(ctx, tx, userID)
		if err != nil {
			return err
		}
		if current != nil {
			if err := tx.SetPaymentMethodDefault(ctx, current.ID, false); err != nil {
				return err
			}
		}
		if err := tx.SetPaymentMethodDefault(ctx, pm.ID, true); err != nil {
			return err
		}

		r.logger.InfoContext(ctx, "default payment method changed",
			logger.UserID(userID),
			slog.String("payment_method_id", pm.ID.String()),
		)
		return nil
	})
}

// Add saves a provider-side method for userID. The first active method becomes the default.
//
// An unknown provider is logged and yields nil, nil so webhook deliveries are not rejected.
// A method already known for the provider returns ledger.ErrDuplicate.
func (r *Registry) Add(ctx context.Context, userID uuid.UUID, providerName, providerMethodID string, typ ledger.PaymentMethodType, payload map[string]any) (*ledger.PaymentMethod, error) {
	if typ != ledger.PaymentMethodCard {
		return nil, errors.Join(ErrUnsupportedMethodType, errors.New(string(typ)))
	}

	var pm *ledger.PaymentMethod
	err := r.store.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		provider, err := tx.GetProviderByName(ctx, providerName)
		if ledger.IsNotFound(err) {
			r.logger.ErrorContext(ctx, "payment method for unknown provider ignored",
				logger.UserID(userID),
				logger.Provider(providerName),
			)
			return nil
		}
		if err != nil {
			return err
		}

		count, err := tx.CountPaymentMethods(ctx, userID)
		if err != nil {
			return err
		}

		pm = &ledger.PaymentMethod{
			UserID:           userID,
			ProviderID:       provider.ID,
			ProviderMethodID: providerMethodID,
			Type:             typ,
			Payload:          payload,
			IsDefault:        count == 0,
			IsActive:         true,
		}
		return tx.CreatePaymentMethod(ctx, pm)
	})
	if err != nil {
		return nil, err
	}
	if pm != nil {
		r.logger.InfoContext(ctx, "payment method added",
			logger.UserID(userID),
			logger.Provider(providerName),
			slog.Bool("default", pm.IsDefault),
		)
	}
	return pm, nil
}

// Remove deactivates the user's method identified by provider and provider id.
// When the removed method was the default, the newest remaining one is promoted.
// It reports false when there was nothing to remove.
func (r *Registry) Remove(ctx context.Context, userID uuid.UUID, providerName, providerMethodID string) (bool, error) {
	removed := false
	err := r.store.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		pm, err := r.find(ctx, tx, providerName, providerMethodID)
		if err != nil || pm == nil {
			return err
		}
		if pm.UserID != userID || !pm.IsActive {
			return nil
		}

		if err := tx.DeactivatePaymentMethod(ctx, pm.ID); err != nil {
			return err
		}
		removed = true

		if !pm.IsDefault {
			return nil
		}
		rest, err := tx.ListPaymentMethods(ctx, userID)
		if err != nil {
			return err
		}
		if len(rest) == 0 {
			return nil
		}
		return tx.SetPaymentMethodDefault(ctx, rest[0].ID, true)
	})
	if err != nil {
		return false, err
	}
	if removed {
		r.logger.InfoContext(ctx, "payment method removed", logger.UserID(userID), logger.Provider(providerName))
	}
	return removed, nil
}

// Owner resolves the user owning a provider-side method. Detach events of some
// providers carry no user reference.
func (r *Registry) Owner(ctx context.Context, providerName, providerMethodID string) (uuid.UUID, error) {
	var owner uuid.UUID
	err := r.store.InTx(ctx, uuid.Nil, func(ctx context.Context, tx ledger.Tx) error {
		pm, err := r.find(ctx, tx, providerName, providerMethodID)
		if err != nil {
			return err
		}
		if pm == nil {
			return ErrPaymentMethodNotFound
		}
		owner = pm.UserID
		return nil
	})
	return owner, err
}

// CheckRemovable rejects removing the user's only active method while the
// active subscription is set to auto-renew.
func (r *Registry) CheckRemovable(ctx context.Context, userID, methodID uuid.UUID) (*ledger.PaymentMethod, error) {
	var pm *ledger.PaymentMethod
	err := r.store.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		pm, err = tx.GetPaymentMethod(ctx, userID, methodID)
		if err != nil {
			return notFound(err)
		}

		count, err := tx.CountPaymentMethods(ctx, userID)
		if err != nil {
			return err
		}
		if count > 1 {
			return nil
		}

		sub, err := tx.GetActiveSubscription(ctx, userID)
		switch {
		case ledger.IsNotFound(err):
			return nil
		case err != nil:
			return err
		case sub.AutoRenews():
			return ErrSoleMethodAutoRenewing
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pm, nil
}

// find returns nil, nil for an unknown provider or method.
func (r *Registry) find(ctx context.Context, tx ledger.Tx, providerName, providerMethodID string) (*ledger.PaymentMethod, error) {
	provider, err := tx.GetProviderByName(ctx, providerName)
	if ledger.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	pm, err := tx.FindPaymentMethod(ctx, provider.ID, providerMethodID)
	if ledger.IsNotFound(err) {
		return nil, nil
	}
	return pm, err
}

func notFound(err error) error {
	if ledger.IsNotFound(err) {
		return errors.Join(ErrPaymentMethodNotFound, err)
	}
	return err
}
