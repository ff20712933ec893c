// Package billing mounts the HTTP surface of the billing core on a chi router.
//
// Routes:
//
//	GET    /plans                                   public catalog
//	GET    /plans/{id}
//	GET    /customer/payment-methods                bearer token
//	POST   /customer/payment-methods
//	POST   /customer/payment-methods/{id}/default
//	DELETE /customer/payment-methods/{id}
//	GET    /customer/subscription
//	POST   /customer/subscription/{plan_id}
//	PUT    /customer/subscription/renew
//	DELETE /customer/subscription
//	GET    /customer/transactions
//	POST   /backoffice/refund/{transaction_id}      backoffice_manager
//	DELETE /backoffice/subscription/{subscription_id}
//	POST   /webhooks/{provider}                     provider signature
//	GET    /health/live
//	GET    /health/ready
//
// Successful responses are {"data": ...}; failures are
// {"error": {"code": ..., "message": ...}} with the status derived from the
// domain error.
package billing
