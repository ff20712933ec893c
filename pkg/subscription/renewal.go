package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billing/pkg/ledger"
	"github.com/dmitrymomot/billing/pkg/logger"
)

// RetryPolicy bounds renewal charges for one billing period.
type RetryPolicy struct {
	// MaxAttempts is the number of failed charges after which auto-renewal is
	// switched off.
	MaxAttempts int
	// Backoff is the minimum gap between a failed charge and the next attempt.
	Backoff time.Duration
}

// DefaultRetryPolicy allows three attempts a day apart.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Backoff: 24 * time.Hour}

// renewalVerdict is what the charge history of the current period allows.
type renewalVerdict int

const (
	renewalCharge renewalVerdict = iota
	renewalInFlight
	renewalBackoff
	renewalExhausted
)

// check inspects the period's charges for the renewal target, newest first.
func (p RetryPolicy) check(history []ledger.Transaction, now time.Time) renewalVerdict {
	var (
		failed     int
		lastFailed time.Time
	)
	for _, t := range history {
		switch t.Status {
		case ledger.StatusProcessing:
			return renewalInFlight
		case ledger.StatusFailed:
			failed++
			if t.CreatedAt.After(lastFailed) {
				lastFailed = t.CreatedAt
			}
		}
	}
	switch {
	case failed == 0:
		return renewalCharge
	case failed >= p.MaxAttempts:
		return renewalExhausted
	case now.Sub(lastFailed) < p.Backoff:
		return renewalBackoff
	default:
		return renewalCharge
	}
}

// periodStart is the earliest creation time of a charge that belongs to the
// renewal of sub.
func periodStart(sub ledger.Subscription) time.Time {
	if sub.ExpiredAt != nil {
		return *sub.ExpiredAt
	}
	return sub.CreatedAt
}

// Expire ends a subscription whose auto-renewal is off once its expiry date has
// passed. The entitlement service is told the user has no plan. It reports
// false when the subscription changed since it was listed.
func (e *Engine) Expire(ctx context.Context, userID, subscriptionID uuid.UUID) (bool, error) {
	var expired bool
	err := e.store.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		sub, err := activeSubscription(ctx, tx, userID)
		if errors.Is(err, ErrNoActiveSubscription) {
			return nil
		}
		if err != nil {
			return err
		}
		if sub.ID != subscriptionID || sub.RenewTo != nil || sub.ExpiredAt == nil || !sub.ExpiredAt.Before(e.today()) {
			return nil
		}
		sub.IsActive = false
		if err := tx.UpdateSubscription(ctx, sub); err != nil {
			return err
		}
		expired = true
		ledger.AfterCommit(ctx, func(ctx context.Context) {
			e.logger.InfoContext(ctx, "subscription expired",
				logger.UserID(userID),
				logger.SubscriptionID(sub.ID),
				logger.PlanID(sub.PlanID),
			)
			e.notify(ctx, userID, 0)
		})
		return nil
	})
	if err != nil {
		return false, err
	}
	return expired, nil
}
