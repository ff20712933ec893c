package subscription

import (
	"fmt"
	"math"
	"time"

	"github.com/dmitrymomot/billing/pkg/ledger"
)

// ProrationFunc returns the unused share of the current billing period in [0, 1].
// The upgrade charge is target.Price - floor(current.Price * share).
type ProrationFunc func(current ledger.Subscription, plan ledger.Plan, now time.Time) float64

// NoProration treats the whole current period as unused, so an upgrade costs
// the price difference of the two plans.
func NoProration(ledger.Subscription, ledger.Plan, time.Time) float64 {
	return 1
}

// ElapsedProration returns the fraction of the current period still ahead of now.
// Subscriptions without an expiry count as fully unused.
func ElapsedProration(current ledger.Subscription, plan ledger.Plan, now time.Time) float64 {
	days := plan.Days()
	if current.ExpiredAt == nil || days <= 0 {
		return 1
	}
	left := current.ExpiredAt.Sub(ledger.Date(now)).Hours() / 24
	return min(max(left/float64(days), 0), 1)
}

// Proration strategy names accepted by ProrationByName.
const (
	ProrationNone    = "none"
	ProrationElapsed = "elapsed"
)

// ProrationByName maps a configured strategy name to its function.
func ProrationByName(name string) (ProrationFunc, error) {
	switch name {
	case "", ProrationNone:
		return NoProration, nil
	case ProrationElapsed:
		return ElapsedProration, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProration, name)
	}
}

// upgradeAmount never goes below zero.
func upgradeAmount(current, target ledger.Plan, share float64) int64 {
	credit := int64(math.Floor(float64(current.Price) * share))
	return max(target.Price-credit, 0)
}

// periodEnd is the expiry of a period of plan starting on the date of start.
func periodEnd(plan ledger.Plan, start time.Time) (time.Time, error) {
	days := plan.Days()
	if days <= 0 {
		return time.Time{}, fmt.Errorf("%w: plan %s has no billing period", ErrInvalidPlan, plan.ID)
	}
	return ledger.Date(start).AddDate(0, 0, days), nil
}

// renewedExpiry extends sub by one period of plan. Periods are anchored on the
// subscription's creation date: the result is the first created_at + k*days
// after the current expiry, so repeated renewals neither drift nor stack.
func renewedExpiry(sub ledger.Subscription, plan ledger.Plan) (time.Time, error) {
	days := plan.Days()
	if days <= 0 {
		return time.Time{}, fmt.Errorf("%w: plan %s has no billing period", ErrInvalidPlan, plan.ID)
	}
	anchor := ledger.Date(sub.CreatedAt)
	current := anchor
	if sub.ExpiredAt != nil && sub.ExpiredAt.After(anchor) {
		current = ledger.Date(*sub.ExpiredAt)
	}
	elapsed := int(current.Sub(anchor).Hours() / 24)
	k := elapsed/days + 1
	return anchor.AddDate(0, 0, k*days), nil
}
