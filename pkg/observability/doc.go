// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// Every runtime component takes a *logrus.Logger and an optional *Metrics.
// A nil *Metrics records nothing, so libraries embedding the runtime do not
// need a Prometheus registry.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, observability.JSONFormat, nil)
//	logger.WithField("plugin", id).Info("Loaded hook category")
//
// # Prometheus Metrics
//
// Register metrics:
//
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
//	metrics.ObserveHook("config", "validateUserConfig", "parallel", 3, start, err)
//
// # OpenTelemetry
//
// Initialize tracing:
//
//	tp, err := observability.InitTracing(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "hookrt",
//	}, logger)
//	defer observability.ShutdownTracing(ctx, tp, logger)
//
// Each hook invocation opens a span named after its protocol.
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/hooks: Hook invocation spans and metrics
package observability
