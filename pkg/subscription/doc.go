// Package subscription drives the lifecycle of user subscriptions.
//
// A user has at most one active subscription. Its plan, expiry date and
// renew_to target together encode the lifecycle state:
//
//   - no active row: nothing purchased, or a first charge still pending
//   - active with renew_to equal to the plan: renewing
//   - active with renew_to set to another plan: downgrade at expiry
//   - active with renew_to unset: cancelled at expiry
//
// # Charges and settlement
//
// Customer requests never settle payments. Subscribe creates (or reuses) a DRAFT
// transaction whose id is the provider idempotency key and asks the provider to
// charge it. The webhook reconciler later calls Upgrade when the charge succeeds
// and Cancel when it is refunded:
//
//	res, err := engine.Subscribe(ctx, userID, planID, nil)
//	switch {
//	case errors.Is(err, subscription.ErrNoDefaultPaymentMethod):
//		// ask the customer to add a card
//	case provider.IsUnavailable(err):
//		// 502 / 504
//	}
//	_ = res.Transaction // DRAFT for new and upgrade branches
//
// Upgrade on the current plan extends the expiry by one period anchored on the
// subscription's creation date. Upgrade to another plan replaces the active row
// with a new one starting today in a single ledger transaction.
//
// # Renewals
//
// ChargeDue is the entry point of the renewal worker. It charges the full price
// of the renew_to plan; the resulting webhook takes the Upgrade path like any
// other charge.
//
// # Entitlements
//
// Every plan activation or deactivation pushes the plan's permission rank to an
// EntitlementService after the ledger transaction commits. Failures are logged
// and never roll back ledger state.
package subscription
