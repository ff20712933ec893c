// Package renewal runs the periodic job that keeps auto-renewing
// subscriptions paid and ends the ones that were not renewed.
//
// Every RENEWAL_INTERVAL the worker lists active subscriptions whose expiry
// date has come and whose renew_to is set, and asks the subscription engine to
// charge the renew_to plan. The engine reuses the pending DRAFT transaction of
// an earlier attempt and holds back while a charge is processing or inside the
// retry backoff, so overlapping passes never send a second charge for the same
// period. Subscriptions with auto-renewal off are expired the day after their
// expiry date.
//
//	w := renewal.NewWorker(store, engine, cfg, renewal.WithLogger(log))
//	go func() { _ = w.Run(ctx) }()
package renewal
