package subscription

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billing/pkg/ledger"
	"github.com/dmitrymomot/billing/pkg/logger"
)

// AdminCancel turns off auto-renewal of any subscription by id.
func (e *Engine) AdminCancel(ctx context.Context, subscriptionID uuid.UUID) (*ledger.Subscription, error) {
	var owner uuid.UUID
	err := e.store.InTx(ctx, uuid.Nil, func(ctx context.Context, tx ledger.Tx) error {
		sub, err := tx.GetSubscription(ctx, subscriptionID)
		if err != nil {
			return err
		}
		owner = sub.UserID
		return nil
	})
	if ledger.IsNotFound(err) {
		return nil, errors.Join(ErrSubscriptionNotFound, err)
	}
	if err != nil {
		return nil, err
	}

	var sub *ledger.Subscription
	err = e.store.InTx(ctx, owner, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		if sub, err = tx.GetSubscription(ctx, subscriptionID); err != nil {
			return err
		}
		return setRenewTo(ctx, tx, sub, nil)
	})
	if err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "subscription renewal cancelled by back-office",
		logger.UserID(owner),
		logger.SubscriptionID(subscriptionID),
	)
	return sub, nil
}

// Refund asks the provider to return a settled charge. The REFUNDED status and
// the subscription rollback follow from the provider's refund webhook.
func (e *Engine) Refund(ctx context.Context, transactionID uuid.UUID, reason string) (*ledger.Transaction, error) {
	t, err := e.transactions.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if t.Status != ledger.StatusSucceeded || t.ProviderTransactionID == nil {
		return nil, ErrTransactionNotRefundable
	}

	if err := e.provider.Refund(ctx, *t.ProviderTransactionID, reason); err != nil {
		e.logger.ErrorContext(ctx, "refund failed",
			logger.TransactionID(t.ID),
			logger.Provider(e.provider.Name()),
			logger.Error(err),
		)
		return nil, err
	}
	e.logger.InfoContext(ctx, "refund requested",
		logger.UserID(t.UserID),
		logger.TransactionID(t.ID),
		logger.Amount(t.Amount, t.Currency),
	)
	return t, nil
}
