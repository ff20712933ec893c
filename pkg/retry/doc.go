// Package retry runs calls to flaky dependencies with backoff and an optional
// circuit breaker.
//
//	err := retry.Do(ctx, func(ctx context.Context) error {
//		resp, err := client.Do(req.WithContext(ctx))
//		if err != nil {
//			return err // transport errors are retried
//		}
//		defer resp.Body.Close()
//		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
//			return retry.Permanent(fmt.Errorf("status %d", resp.StatusCode))
//		}
//		...
//	}, retry.WithMaxRetries(3), retry.WithBackoff(retry.DefaultBackoff()))
package retry
