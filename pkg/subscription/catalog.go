package subscription

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billing/pkg/ledger"
)

// Plans lists the purchasable plans, cheapest first.
func (e *Engine) Plans(ctx context.Context) ([]ledger.Plan, error) {
	var plans []ledger.Plan
	err := e.store.InTx(ctx, uuid.Nil, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		plans, err = tx.ListPlans(ctx, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return plans, nil
}

// Plan returns an active plan, or ErrPlanNotFound.
func (e *Engine) Plan(ctx context.Context, planID uuid.UUID) (*ledger.Plan, error) {
	var plan *ledger.Plan
	err := e.store.InTx(ctx, uuid.Nil, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		plan, err = activePlan(ctx, tx, planID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}
