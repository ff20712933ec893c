// Package entitlement notifies the auth service about a user's access tier.
//
// Client implements subscription.EntitlementService:
//
//	client, err := entitlement.New(cfg, entitlement.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	err = client.SetUserPermissionRank(ctx, userID, plan.PermissionRank)
//	switch {
//	case errors.Is(err, entitlement.ErrRejected):
//		// 4xx, not retried
//	case errors.Is(err, entitlement.ErrUnavailable):
//		// retries exhausted or circuit open
//	}
package entitlement
