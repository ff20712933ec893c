// Package provider defines the payment provider capability used by the
// billing core and the provider-neutral webhook event model.
//
// Concrete providers live in the stripe and paddle subpackages. The composition
// root picks exactly one by name and wraps it with WithTimeout so no provider
// call can hang a request.
//
// Webhook deliveries decode into a closed set of Event variants. Types the core
// does not act on decode into Unhandled, which is a valid result and not an
// error:
//
//	switch e := ev.(type) {
//	case provider.PaymentSucceeded:
//		// settle e.TransactionID
//	case provider.Unhandled:
//		// acknowledge
//	}
package provider
