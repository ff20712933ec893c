package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the durable home of plans, payment methods, subscriptions and transactions.
//
// All access goes through InTx. The callback runs in a single transaction that holds
// a lock scoped to lockKey (usually the user id), so a decision read and the writes
// it drives are applied atomically. Pass uuid.Nil to skip the lock.
// Calling InTx with a context produced by an outer InTx joins the outer transaction.
// Side effects outside the database are registered with AfterCommit so they run
// only after the outermost transaction commits and its lock is released.
type Store interface {
	InTx(ctx context.Context, lockKey uuid.UUID, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of ledger operations available inside a transaction.
// Lookups return ErrNotFound when nothing matches; writes return ErrDuplicate on
// uniqueness violations.
type Tx interface {
	PlanTx
	PaymentMethodTx
	SubscriptionTx
	TransactionTx
}

// PlanTx reads the plan catalog and provider registry.
type PlanTx interface {
	GetPlan(ctx context.Context, id uuid.UUID) (*Plan, error)
	ListPlans(ctx context.Context, activeOnly bool) ([]Plan, error)
	GetProviderByName(ctx context.Context, name string) (*Provider, error)
}

// PaymentMethodTx manages saved payment methods.
type PaymentMethodTx interface {
	// GetPaymentMethod returns an active method owned by userID.
	GetPaymentMethod(ctx context.Context, userID, id uuid.UUID) (*PaymentMethod, error)
	// FindPaymentMethod looks a method up by provider identity regardless of owner or state.
	FindPaymentMethod(ctx context.Context, providerID uuid.UUID, providerMethodID string) (*PaymentMethod, error)
	// ListPaymentMethods returns active methods ordered by creation, newest first.
	ListPaymentMethods(ctx context.Context, userID uuid.UUID) ([]PaymentMethod, error)
	GetDefaultPaymentMethod(ctx context.Context, userID uuid.UUID) (*PaymentMethod, error)
	CountPaymentMethods(ctx context.Context, userID uuid.UUID) (int, error)
	CreatePaymentMethod(ctx context.Context, pm *PaymentMethod) error
	SetPaymentMethodDefault(ctx context.Context, id uuid.UUID, isDefault bool) error
	DeactivatePaymentMethod(ctx context.Context, id uuid.UUID) error
}

// SubscriptionTx manages user subscription rows.
type SubscriptionTx interface {
	GetSubscription(ctx context.Context, id uuid.UUID) (*Subscription, error)
	GetActiveSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	// ListRollbackCandidates returns inactive subscriptions of userID created before
	// createdBefore and still unexpired at today, newest first.
	ListRollbackCandidates(ctx context.Context, userID uuid.UUID, createdBefore, today time.Time) ([]Subscription, error)
	// ListDueSubscriptions returns active, auto-renewing subscriptions expiring on or before today.
	ListDueSubscriptions(ctx context.Context, today time.Time, limit int) ([]Subscription, error)
	// ListLapsedSubscriptions returns active subscriptions with auto-renewal off
	// whose expiry date is before today.
	ListLapsedSubscriptions(ctx context.Context, today time.Time, limit int) ([]Subscription, error)
	CreateSubscription(ctx context.Context, s *Subscription) error
	UpdateSubscription(ctx context.Context, s *Subscription) error
}

// TransactionTx manages charge transactions.
type TransactionTx interface {
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetTransactionByProviderID(ctx context.Context, providerID uuid.UUID, providerTransactionID string) (*Transaction, error)
	// GetLatestDraft returns the newest DRAFT transaction for the user, plan and method.
	GetLatestDraft(ctx context.Context, userID, planID, paymentMethodID uuid.UUID) (*Transaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID) ([]Transaction, error)
	// ListPlanTransactions returns transactions of userID for planID created at or
	// after since, newest first.
	ListPlanTransactions(ctx context.Context, userID, planID uuid.UUID, since time.Time) ([]Transaction, error)
	CreateTransaction(ctx context.Context, t *Transaction) error
	UpdateTransaction(ctx context.Context, t *Transaction) error
}
