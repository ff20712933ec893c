// Package httpserver wraps net/http with context-driven graceful shutdown,
// configurable timeouts and JSON health endpoints.
//
// Run blocks until the supplied context is cancelled, then drains in-flight
// requests with http.Server.Shutdown bounded by the shutdown timeout. Signal
// handling belongs to the caller:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server failed", logger.Error(err))
//	}
//
// LivenessHandler and ReadinessHandler expose /health/live and /health/ready.
// Readiness runs each named Check and answers 503 when any of them fails.
//
// Errors from Run are joined with ErrStart and errors from Shutdown with
// ErrShutdown, so callers can match them with errors.Is.
package httpserver
