// Package transaction manages charge transactions and their idempotency keys.
//
// A transaction id is handed to the payment provider as the idempotency key of
// the charge. GetOrCreateDraft therefore reuses the newest DRAFT for the same
// user, plan and payment method, so a client retrying before the provider
// confirms never produces a second provider-side charge.
//
// Provider callbacks are applied with UpdateByProviderCallback, scoped to the
// owning user. Status only moves forward:
//
//	DRAFT      -> PROCESSING | SUCCEEDED | FAILED
//	PROCESSING -> SUCCEEDED | FAILED
//	SUCCEEDED  -> REFUNDED
//
// FAILED and REFUNDED are terminal. A repeated or out-of-order callback is not
// an error; the Result reports Changed=false and callers use that flag to avoid
// re-running side effects on duplicate deliveries.
package transaction
