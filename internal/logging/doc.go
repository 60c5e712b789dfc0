// Package logging provides structured logging with OpenTelemetry integration.
//
// Logger wraps Zap with:
//   - a custom Trace level (-2, below Debug)
//   - stdout and OpenTelemetry outputs
//   - context field injection (trace_id, session.id, role.id, request.id)
//   - redaction of provider credentials
//
// Create a logger from the observability section of the council config:
//
//	cfg, err := logging.FromObservability(appCfg.Observability)
//	logger, err := logging.NewLogger(cfg, otelLoggerProvider)
//	defer logger.Sync()
//
// Log with context:
//
//	ctx = logging.WithSessionID(ctx, session.ID)
//	ctx = logging.WithRole(ctx, "technical")
//	logger.Info(ctx, "role analysis finished", zap.Duration("duration", d))
//
// Use NewTestLogger in tests to assert on emitted entries.
package logging
