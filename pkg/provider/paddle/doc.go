// Package paddle implements provider.PaymentProvider on Paddle Billing using
// the official paddle-go-sdk.
//
// Paddle collects payments through hosted checkout only. Charge creates a
// transaction for the plan's catalog price with the local transaction id and
// user id in custom data and returns its checkout URL. AddPaymentMethod opens
// a checkout for the configured setup price; the card used there is reported
// as provider.MethodAttached once that checkout completes.
//
// Webhook mapping:
//
//	transaction.paid               -> provider.PaymentProcessing
//	transaction.payment_failed     -> provider.PaymentFailed
//	transaction.completed          -> provider.PaymentSucceeded (or MethodAttached for setup checkouts)
//	adjustment.created|updated     -> provider.ChargeRefunded for approved refunds
//
// Refund adjustments carry only Paddle's transaction id; the reconciler
// resolves the local transaction from it. Removing saved cards and issuing
// refunds go through the Paddle dashboard and report provider.ErrNotSupported.
package paddle
