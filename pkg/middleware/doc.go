// Package middleware provides observability for the session runtime:
// Prometheus metrics and OpenTelemetry tracing, both shaped as
// server.Middleware wrapping every event handler, plus a Prometheus
// server.Observer for session-level counters.
//
// Metrics:
//
//	cfg := server.DefaultServerConfig()
//	cfg.EventMiddleware = []server.Middleware{middleware.Prometheus()}
//	cfg.Session.Observer = middleware.PrometheusObserver()
//	cfg.MetricsEnabled = true // mounts promhttp at /metrics
//
// Tracing:
//
//	cfg.EventMiddleware = append(cfg.EventMiddleware,
//	    middleware.OpenTelemetry(middleware.WithTracerName("myapp")))
//
// The tracing middleware replaces the event's StdContext with the span
// context, so database drivers and HTTP clients called from handlers
// inherit the trace.
package middleware
