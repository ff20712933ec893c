// Package reconciler applies payment provider webhooks to the billing ledger.
//
// A delivery is verified and decoded by the configured provider, then
// dispatched on its event variant:
//
//   - method attached: the payment method is saved; re-deliveries hit the
//     ledger's uniqueness rule and are swallowed
//   - method detached: the method is deactivated and a new default promoted
//   - payment processing or failed: the transaction status moves forward
//   - payment succeeded: the transaction settles and the subscription engine
//     upgrades the user, in one ledger transaction
//   - charge refunded: the transaction is marked refunded and the engine
//     cancels the subscription, in one ledger transaction
//   - anything else: logged and acknowledged
//
// Engine calls run only when the transaction status actually moved, so a
// replayed event never upgrades or cancels twice.
//
// Handle rejects only deliveries that fail parsing or signature checks. All
// other deliveries are acknowledged so providers do not retry indefinitely;
// internal failures are logged and returned in Outcome.Err.
//
// An optional Deduplicator remembers event ids (in redis with RedisDeduplicator)
// and skips re-deliveries before they reach the ledger:
//
//	rec := reconciler.New(store, provider, registry, transactions, engine,
//		reconciler.WithDeduplicator(reconciler.NewRedisDeduplicator(rdb, 72*time.Hour)),
//		reconciler.WithLogger(log),
//	)
//	out := rec.Handle(ctx, body, r.Header)
package reconciler
