// Package paymentmethod keeps the registry of users' saved payment methods.
//
// A user has at most one active default method. The first method added
// becomes the default, SetDefault swaps it atomically, and removing the
// default promotes the newest remaining method. All reads that drive a write
// run in the same ledger transaction, locked on the user id, so concurrent
// requests and webhook deliveries for one user serialise.
//
//	registry := paymentmethod.NewRegistry(store, paymentmethod.WithLogger(log))
//	pm, err := registry.Add(ctx, userID, "stripe", "pm_123", ledger.PaymentMethodCard, payload)
//
// Add ignores unknown providers (logged, nil result) so a misconfigured
// provider row never makes the webhook endpoint reject deliveries.
package paymentmethod
