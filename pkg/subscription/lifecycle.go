package subscription

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billing/pkg/ledger"
	"github.com/dmitrymomot/billing/pkg/logger"
	"github.com/dmitrymomot/billing/pkg/paymentmethod"
)

// Renew re-enables auto-renewal of the active subscription on its own plan.
func (e *Engine) Renew(ctx context.Context, userID uuid.UUID) (*ledger.Subscription, error) {
	var sub *ledger.Subscription
	err := e.store.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		if sub, err = activeSubscription(ctx, tx, userID); err != nil {
			return err
		}
		return setRenewTo(ctx, tx, sub, &sub.PlanID)
	})
	if err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "auto-renewal enabled", logger.UserID(userID), logger.SubscriptionID(sub.ID))
	return sub, nil
}

// Unsubscribe disables auto-renewal. Access lasts until the subscription expires.
func (e *Engine) Unsubscribe(ctx context.Context, userID uuid.UUID) (*ledger.Subscription, error) {
	var sub *ledger.Subscription
	err := e.store.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		if sub, err = activeSubscription(ctx, tx, userID); err != nil {
			return err
		}
		return setRenewTo(ctx, tx, sub, nil)
	})
	if err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "auto-renewal disabled", logger.UserID(userID), logger.SubscriptionID(sub.ID))
	return sub, nil
}

// Downgrade schedules toPlanID as the plan the active subscription moves to at expiry.
func (e *Engine) Downgrade(ctx context.Context, userID, toPlanID uuid.UUID) (*ledger.Subscription, error) {
	var sub *ledger.Subscription
	err := e.store.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		plan, err := activePlan(ctx, tx, toPlanID)
		if err != nil {
			return err
		}
		if sub, err = activeSubscription(ctx, tx, userID); err != nil {
			return err
		}
		return setRenewTo(ctx, tx, sub, &plan.ID)
	})
	if err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "downgrade scheduled",
		logger.UserID(userID),
		logger.SubscriptionID(sub.ID),
		logger.PlanID(toPlanID),
	)
	return sub, nil
}

// Upgrade settles a confirmed charge for toPlanID. It is driven by payment
// webhooks, not by customer requests.
//
// When the active subscription is already on toPlanID the charge paid for the
// next period and expiry moves forward by one period. Otherwise the active
// subscription is replaced by a new one on toPlanID starting today, and the
// entitlement service learns the new rank after the outermost ledger
// transaction commits.
func (e *Engine) Upgrade(ctx context.Context, userID, toPlanID uuid.UUID) error {
	return e.store.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		plan, err := tx.GetPlan(ctx, toPlanID)
		if ledger.IsNotFound(err) {
			return errors.Join(ErrPlanNotFound, err)
		}
		if err != nil {
			return err
		}

		sub, err := activeSubscription(ctx, tx, userID)
		switch {
		case errors.Is(err, ErrNoActiveSubscription):
			sub = nil
		case err != nil:
			return err
		case sub.PlanID == plan.ID:
			expiry, err := renewedExpiry(*sub, *plan)
			if err != nil {
				return err
			}
			sub.ExpiredAt = &expiry
			if err := tx.UpdateSubscription(ctx, sub); err != nil {
				return err
			}
			e.logger.InfoContext(ctx, "subscription renewed",
				logger.UserID(userID),
				logger.SubscriptionID(sub.ID),
				slog.Time("expired_at", expiry),
			)
			return nil
		}

		expiry, err := periodEnd(*plan, e.today())
		if err != nil {
			return err
		}
		if sub != nil {
			sub.IsActive = false
			sub.RenewTo = nil
			if err := tx.UpdateSubscription(ctx, sub); err != nil {
				return err
			}
		}
		next := &ledger.Subscription{
			UserID:    userID,
			PlanID:    plan.ID,
			ExpiredAt: &expiry,
			RenewTo:   &plan.ID,
			IsActive:  true,
		}
		if err := tx.CreateSubscription(ctx, next); err != nil {
			return err
		}
		rank := plan.PermissionRank
		ledger.AfterCommit(ctx, func(ctx context.Context) {
			e.logger.InfoContext(ctx, "subscription plan switched",
				logger.UserID(userID),
				logger.SubscriptionID(next.ID),
				logger.PlanID(next.PlanID),
			)
			e.notify(ctx, userID, rank)
		})
		return nil
	})
}

// Cancel revokes the active subscription after a refund. It is driven by
// refund webhooks.
//
// The newest earlier subscription that is still unexpired becomes active again,
// renewing into itself when the user still has a default payment method. The
// entitlement service receives that plan's rank, or zero when nothing is left,
// once the outermost ledger transaction has committed.
func (e *Engine) Cancel(ctx context.Context, userID uuid.UUID) error {
	return e.store.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		sub, err := activeSubscription(ctx, tx, userID)
		if err != nil {
			return err
		}
		sub.IsActive = false
		sub.RenewTo = nil
		if err := tx.UpdateSubscription(ctx, sub); err != nil {
			return err
		}

		candidates, err := tx.ListRollbackCandidates(ctx, userID, sub.CreatedAt, e.today())
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			ledger.AfterCommit(ctx, func(ctx context.Context) {
				e.logger.InfoContext(ctx, "subscription cancelled", logger.UserID(userID))
				e.notify(ctx, userID, 0)
			})
			return nil
		}

		prev := candidates[0]
		plan, err := tx.GetPlan(ctx, prev.PlanID)
		if err != nil {
			return err
		}
		method, err := paymentmethod.DefaultIn(ctx, tx, userID)
		if err != nil {
			return err
		}
		prev.IsActive = true
		prev.RenewTo = nil
		if method != nil {
			prev.RenewTo = &prev.PlanID
		}
		if err := tx.UpdateSubscription(ctx, &prev); err != nil {
			return err
		}
		rank := plan.PermissionRank
		ledger.AfterCommit(ctx, func(ctx context.Context) {
			e.logger.InfoContext(ctx, "subscription rolled back",
				logger.UserID(userID),
				logger.SubscriptionID(prev.ID),
				logger.PlanID(prev.PlanID),
			)
			e.notify(ctx, userID, rank)
		})
		return nil
	})
}

// Current is the user's active subscription with its plan.
type Current struct {
	Subscription ledger.Subscription
	Plan         ledger.Plan
	RenewTo      *ledger.Plan
}

// Current returns the active subscription, or ErrNoActiveSubscription.
func (e *Engine) Current(ctx context.Context, userID uuid.UUID) (*Current, error) {
	var cur *Current
	err := e.store.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		sub, err := activeSubscription(ctx, tx, userID)
		if err != nil {
			return err
		}
		plan, err := tx.GetPlan(ctx, sub.PlanID)
		if err != nil {
			return err
		}
		cur = &Current{Subscription: *sub, Plan: *plan}
		if sub.RenewTo == nil {
			return nil
		}
		if *sub.RenewTo == plan.ID {
			cur.RenewTo = plan
			return nil
		}
		next, err := tx.GetPlan(ctx, *sub.RenewTo)
		if err != nil {
			return err
		}
		cur.RenewTo = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cur, nil
}
