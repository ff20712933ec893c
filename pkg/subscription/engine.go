package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billing/pkg/ledger"
	"github.com/dmitrymomot/billing/pkg/logger"
	"github.com/dmitrymomot/billing/pkg/paymentmethod"
	"github.com/dmitrymomot/billing/pkg/provider"
	"github.com/dmitrymomot/billing/pkg/transaction"
)

// EntitlementService receives the access tier of a user after every plan
// activation or deactivation. Calls must be idempotent.
type EntitlementService interface {
	SetUserPermissionRank(ctx context.Context, userID uuid.UUID, rank int) error
}

// Branch names the path Subscribe took.
type Branch string

const (
	BranchNew       Branch = "new"
	BranchRenew     Branch = "renew"
	BranchUpgrade   Branch = "upgrade"
	BranchDowngrade Branch = "downgrade"
)

// SubscribeResult describes what Subscribe did. Transaction is set for the
// charging branches; CheckoutURL when the customer must finish payment on a
// provider-hosted page.
type SubscribeResult struct {
	Branch       Branch
	Subscription *ledger.Subscription
	Transaction  *ledger.Transaction
	CheckoutURL  string
}

// Engine drives subscription state. It holds no per-user state: every decision
// is read and written inside one ledger transaction locked on the user.
type Engine struct {
	store        ledger.Store
	registry     *paymentmethod.Registry
	transactions *transaction.Manager
	provider     provider.PaymentProvider
	entitlements EntitlementService

	logger          *slog.Logger
	now             func() time.Time
	providerTimeout time.Duration
	proration       ProrationFunc
	retry           RetryPolicy
}

// NewEngine panics when a dependency is nil.
func NewEngine(
	store ledger.Store,
	registry *paymentmethod.Registry,
	transactions *transaction.Manager,
	p provider.PaymentProvider,
	entitlements EntitlementService,
	opts ...Option,
) *Engine {
	switch {
	case store == nil:
		panic("subscription: ledger store is required")
	case registry == nil:
		panic("subscription: payment method registry is required")
	case transactions == nil:
		panic("subscription: transaction manager is required")
	case p == nil:
		panic("subscription: payment provider is required")
	case entitlements == nil:
		panic("subscription: entitlement service is required")
	}

	e := &Engine{
		store:           store,
		registry:        registry,
		transactions:    transactions,
		entitlements:    entitlements,
		logger:          logger.Discard(),
		now:             time.Now,
		providerTimeout: provider.DefaultTimeout,
		proration:       NoProration,
		retry:           DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.provider = provider.WithTimeout(p, e.providerTimeout)
	e.logger = e.logger.With(logger.Component("subscription"))
	return e
}

// pendingCharge is a draft waiting to be sent to the provider once the ledger
// transaction that created it has committed.
type pendingCharge struct {
	draft  *ledger.Transaction
	method *ledger.PaymentMethod
	plan   ledger.Plan
}

// Subscribe moves the user towards planID.
//
// Without an active subscription the plan's full price is charged; on the same
// plan auto-renewal is re-enabled; a pricier plan is charged the upgrade amount;
// a cheaper one is scheduled as the next renewal target. Charges settle through
// provider webhooks, never here.
func (e *Engine) Subscribe(ctx context.Context, userID, planID uuid.UUID, methodID *uuid.UUID) (*SubscribeResult, error) {
	var (
		res     = &SubscribeResult{}
		pending *pendingCharge
	)
	err := e.store.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		method, err := e.registry.ResolveIn(ctx, tx, userID, methodID)
		if err != nil {
			return err
		}
		target, err := activePlan(ctx, tx, planID)
		if err != nil {
			return err
		}

		sub, err := activeSubscription(ctx, tx, userID)
		if errors.Is(err, ErrNoActiveSubscription) {
			res.Branch = BranchNew
			if target.Price == 0 {
				return nil
			}
			pending = &pendingCharge{method: method, plan: *target}
			pending.draft, err = e.draft(ctx, tx, userID, method, *target, target.Price)
			return err
		}
		if err != nil {
			return err
		}
		res.Subscription = sub

		if sub.PlanID == target.ID {
			res.Branch = BranchRenew
			return setRenewTo(ctx, tx, sub, &target.ID)
		}

		current, err := tx.GetPlan(ctx, sub.PlanID)
		if err != nil {
			return err
		}
		if target.Price <= current.Price {
			res.Branch = BranchDowngrade
			return setRenewTo(ctx, tx, sub, &target.ID)
		}

		res.Branch = BranchUpgrade
		share := e.proration(*sub, *current, e.now())
		amount := upgradeAmount(*current, *target, share)
		pending = &pendingCharge{method: method, plan: *target}
		pending.draft, err = e.draft(ctx, tx, userID, method, *target, amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "subscribe",
		logger.UserID(userID),
		logger.PlanID(planID),
		slog.String("branch", string(res.Branch)),
	)

	if pending == nil {
		if res.Branch == BranchNew {
			// Free plans have nothing to settle asynchronously.
			if err := e.Upgrade(ctx, userID, planID); err != nil {
				return nil, err
			}
		}
		return res, nil
	}

	checkoutURL, err := e.charge(ctx, userID, pending)
	if err != nil {
		return nil, err
	}
	res.Transaction = pending.draft
	res.CheckoutURL = checkoutURL
	return res, nil
}

// ChargeDue charges the user's default method the full price of planID for
// the next period of an auto-renewing subscription. Settlement arrives through
// the payment webhook as a regular Upgrade. Free plans are settled at once.
//
// Nothing is charged while an earlier charge for the period is still
// processing (ErrChargeInFlight) or within the retry backoff after a failure
// (ErrRenewalBackoff). Once the retry policy runs out, auto-renewal is switched
// off and ErrRenewalExhausted is returned; the subscription then lapses.
func (e *Engine) ChargeDue(ctx context.Context, userID, planID uuid.UUID) (*SubscribeResult, error) {
	var (
		res     = &SubscribeResult{}
		pending *pendingCharge
		verdict renewalVerdict
	)
	err := e.store.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		sub, err := activeSubscription(ctx, tx, userID)
		if err != nil {
			return err
		}
		res.Subscription = sub

		target, err := activePlan(ctx, tx, planID)
		if err != nil {
			return err
		}
		current, err := tx.GetPlan(ctx, sub.PlanID)
		if err != nil {
			return err
		}
		switch {
		case current.ID == target.ID:
			res.Branch = BranchRenew
		case target.Price > current.Price:
			res.Branch = BranchUpgrade
		default:
			res.Branch = BranchDowngrade
		}

		if target.Price == 0 {
			return nil
		}

		history, err := tx.ListPlanTransactions(ctx, userID, target.ID, periodStart(*sub))
		if err != nil {
			return err
		}
		switch verdict = e.retry.check(history, e.now()); verdict {
		case renewalInFlight, renewalBackoff:
			return nil
		case renewalExhausted:
			return setRenewTo(ctx, tx, sub, nil)
		}

		method, err := e.registry.ResolveIn(ctx, tx, userID, nil)
		if err != nil {
			return err
		}
		pending = &pendingCharge{method: method, plan: *target}
		pending.draft, err = e.draft(ctx, tx, userID, method, *target, target.Price)
		return err
	})
	if err != nil {
		return nil, err
	}

	switch verdict {
	case renewalInFlight:
		return nil, ErrChargeInFlight
	case renewalBackoff:
		return nil, ErrRenewalBackoff
	case renewalExhausted:
		e.logger.WarnContext(ctx, "auto-renewal switched off after failed charges",
			logger.UserID(userID),
			logger.SubscriptionID(res.Subscription.ID),
			logger.PlanID(planID),
			slog.Int("attempts", e.retry.MaxAttempts),
		)
		return nil, ErrRenewalExhausted
	}

	if pending == nil {
		if err := e.Upgrade(ctx, userID, planID); err != nil {
			return nil, err
		}
		return res, nil
	}

	checkoutURL, err := e.charge(ctx, userID, pending)
	if err != nil {
		return nil, err
	}
	res.Transaction = pending.draft
	res.CheckoutURL = checkoutURL
	return res, nil
}

func (e *Engine) draft(ctx context.Context, tx ledger.TransactionTx, userID uuid.UUID, method *ledger.PaymentMethod, plan ledger.Plan, amount int64) (*ledger.Transaction, error) {
	return e.transactions.GetOrCreateDraft(ctx, tx, transaction.Draft{
		UserID:          userID,
		PlanID:          plan.ID,
		PaymentMethodID: method.ID,
		ProviderID:      method.ProviderID,
		Amount:          amount,
		Currency:        plan.Currency,
	})
}

// charge sends a committed draft to the provider. The draft id is the
// idempotency key, so a retried request cannot charge twice.
func (e *Engine) charge(ctx context.Context, userID uuid.UUID, p *pendingCharge) (string, error) {
	res, err := e.provider.Charge(ctx, provider.ChargeRequest{
		UserID:           userID,
		ProviderMethodID: p.method.ProviderMethodID,
		Amount:           p.draft.Amount,
		Currency:         p.draft.Currency,
		IdempotencyKey:   p.draft.ID.String(),
		ProviderPriceID:  p.plan.ProviderPriceID,
		Metadata: map[string]string{
			"transaction_id": p.draft.ID.String(),
			"user_id":        userID.String(),
			"plan_id":        p.plan.ID.String(),
		},
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "charge failed",
			logger.UserID(userID),
			logger.TransactionID(p.draft.ID),
			logger.Provider(e.provider.Name()),
			logger.Error(err),
		)
		return "", err
	}

	if res.ProviderTransactionID != "" {
		if err := e.transactions.AttachProviderID(ctx, userID, p.draft.ID, res.ProviderTransactionID); err != nil {
			// The settlement webhook carries the reference too.
			e.logger.WarnContext(ctx, "provider reference not stored",
				logger.TransactionID(p.draft.ID),
				logger.Error(err),
			)
		}
	}
	e.logger.InfoContext(ctx, "charge requested",
		logger.UserID(userID),
		logger.TransactionID(p.draft.ID),
		logger.Amount(p.draft.Amount, p.draft.Currency),
	)
	return res.CheckoutURL, nil
}

// notify pushes a permission rank to the entitlement service. Failures are
// logged and never undo ledger changes.
func (e *Engine) notify(ctx context.Context, userID uuid.UUID, rank int) {
	if err := e.entitlements.SetUserPermissionRank(ctx, userID, rank); err != nil {
		e.logger.ErrorContext(ctx, "entitlement update failed",
			logger.UserID(userID),
			slog.Int("rank", rank),
			logger.Error(err),
		)
	}
}

func (e *Engine) today() time.Time {
	return ledger.Date(e.now())
}

func activePlan(ctx context.Context, tx ledger.PlanTx, planID uuid.UUID) (*ledger.Plan, error) {
	plan, err := tx.GetPlan(ctx, planID)
	if ledger.IsNotFound(err) {
		return nil, errors.Join(ErrPlanNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

func activeSubscription(ctx context.Context, tx ledger.SubscriptionTx, userID uuid.UUID) (*ledger.Subscription, error) {
	sub, err := tx.GetActiveSubscription(ctx, userID)
	if ledger.IsNotFound(err) {
		return nil, ErrNoActiveSubscription
	}
	return sub, err
}

func setRenewTo(ctx context.Context, tx ledger.SubscriptionTx, sub *ledger.Subscription, planID *uuid.UUID) error {
	if planID != nil {
		id := *planID
		planID = &id
	}
	sub.RenewTo = planID
	return tx.UpdateSubscription(ctx, sub)
}
