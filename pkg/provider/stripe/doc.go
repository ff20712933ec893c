// Package stripe implements provider.PaymentProvider on top of stripe-go.
//
// Each billing user maps to a Stripe customer whose id is the user id, created
// on first use. Cards are collected with a SetupIntent and a Stripe Elements
// form, and charged off-session with PaymentIntents that carry the local
// transaction id as idempotency key and as transaction_id metadata.
//
// ParseEvent verifies the Stripe-Signature header and maps these event types:
//
//	payment_method.attached        -> provider.MethodAttached
//	payment_method.detached        -> provider.MethodDetached
//	payment_intent.processing      -> provider.PaymentProcessing
//	payment_intent.payment_failed  -> provider.PaymentFailed
//	payment_intent.succeeded       -> provider.PaymentSucceeded
//	charge.refunded                -> provider.ChargeRefunded
//
// Everything else decodes to provider.Unhandled.
package stripe
