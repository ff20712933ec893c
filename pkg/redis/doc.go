// Package redis bootstraps go-redis clients for the billing service.
//
// Connect parses a redis:// URL and pings the server with retries until it is
// ready. Healthcheck adapts a client to the func(context.Context) error shape
// used by the readiness endpoint.
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
// The returned client is shared by the webhook delivery deduplicator.
package redis
