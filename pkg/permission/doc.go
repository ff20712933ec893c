// Package permission guards HTTP routes by the permission list carried in the
// caller's access token.
//
// A request passes when the caller holds any of the required permissions or
// the Superuser permission:
//
//	r.With(permission.Require(jwt.Permissions, permission.BackofficeManager)).
//		Post("/backoffice/refund/{transaction_id}", refund)
package permission
