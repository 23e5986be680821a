// Package logger builds log/slog loggers with environment presets,
// context-derived attributes and a small set of attribute helpers shared
// across the service (user, feature, tier, limit, error).
//
//	log := logger.New(
//	    logger.WithEnvironment(environment.Production, "usagegate"),
//	    logger.WithContextExtractors(principal.LoggerExtractor()),
//	)
//	log.WarnContext(ctx, "quota store unavailable",
//	    logger.Feature(quota.FeatureAITips),
//	    logger.Error(err),
//	)
package logger
