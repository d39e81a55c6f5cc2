// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing
// for the portal.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("username", "alice").Info("login succeeded")
//
// Request-scoped logging (request_id, user_id and the active trace are added
// when present):
//
//	observability.FromContext(r.Context()).WithError(err).Warn("logout call failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveSessionOperation("login", start, err)
//	metrics.IncAuthRetry("replayed")
//
// All Metrics helpers accept a nil receiver so library code can run without metrics.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.AddCheck("token_store", true, store.Ping)
//	checker.AddCheck("identity_service", false, probeIdentity)
//
// # OpenTelemetry
//
//	telemetry, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:        true,
//		Endpoint:       "otel-collector:4317",
//		ServiceName:    "portal",
//		ServiceVersion: "v1.0.0",
//	}, logger)
//	defer telemetry.Shutdown(ctx)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/httputil: Request id and access log middleware
package observability
