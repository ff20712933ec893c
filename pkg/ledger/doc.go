// Package ledger defines the billing records and the transactional store they live in.
//
// The package owns four entities: plans (read-only catalog), saved payment methods,
// user subscriptions and charge transactions. All reads and writes go through
// Store.InTx, which runs a callback inside one transaction guarded by a per-user
// lock. Higher layers compose their decision reads and the writes they drive in a
// single callback, so concurrent requests for the same user serialise.
//
// # Uniqueness
//
// Implementations enforce three rules and report collisions as ErrDuplicate:
//
//   - (provider, provider method id) is unique across all payment methods
//   - at most one active default payment method per user
//   - at most one active subscription per user
//
// # Implementations
//
// NewMemoryStore keeps everything in process and is used by tests and local runs.
// The pgstore subpackage provides the PostgreSQL implementation.
//
// # Usage
//
//	store := ledger.NewMemoryStore([]string{"stripe"})
//	err := store.InTx(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
//		sub, err := tx.GetActiveSubscription(ctx, userID)
//		if err != nil {
//			return err
//		}
//		sub.RenewTo = nil
//		return tx.UpdateSubscription(ctx, sub)
//	})
package ledger
