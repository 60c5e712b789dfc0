// Package telemetry provides OpenTelemetry tracing and metrics for council.
//
// New installs the tracer and meter providers globally so that packages
// calling otel.Tracer and otel.Meter pick them up. When telemetry is disabled
// those calls resolve to the no-op providers and cost nothing.
//
// Export failures never stop the server; the instance reports itself as
// degraded through Health instead.
//
// Tests use NewTestTelemetry, which records spans and metrics in memory.
package telemetry
