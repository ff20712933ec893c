// Package logger builds *slog.Logger values for billing components and offers
// attribute helpers with stable keys.
//
// New takes functional options for format, level, output, static attributes and
// context extractors. Extractors run for every record, so request-scoped values
// such as the chi request id appear without threading loggers through calls:
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, cfg.Name),
//		logger.WithContextValue("request_id", middleware.RequestIDKey),
//	)
//	log.InfoContext(ctx, "subscription upgraded",
//		logger.UserID(userID),
//		logger.PlanID(planID),
//		logger.TransactionID(txID),
//	)
//
// Attribute helpers return an empty slog.Attr for nil ids, which slog drops.
package logger
