package middleware

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/urlbind-dev/urlbind/pkg/server"
)

// MetricsConfig configures the Prometheus instrumentation.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "urlbind").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for event duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus instrumentation.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "urlbind",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// metrics holds every collector the package registers. One instance
// per registry; the middleware and the observer share it.
type metrics struct {
	eventsTotal     *prometheus.CounterVec
	eventDuration   *prometheus.HistogramVec
	eventErrors     *prometheus.CounterVec
	commitsTotal    *prometheus.CounterVec
	framesSent      *prometheus.CounterVec
	bytesSent       prometheus.Counter
	activeSessions  prometheus.Gauge
	transportErrors *prometheus.CounterVec
}

var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

// metricsFor returns the shared metrics instance, creating and
// registering it on first use. Collectors register once no matter how
// many middlewares or observers are built.
func metricsFor(config MetricsConfig) *metrics {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	return globalMetrics
}

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "events_total",
			Help:        "Total number of client events processed",
			ConstLabels: config.ConstLabels,
		}, []string{"event", "status"}),

		eventDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "event_duration_seconds",
			Help:        "Event handler duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"event"}),

		eventErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "event_errors_total",
			Help:        "Total number of event handler errors",
			ConstLabels: config.ConstLabels,
		}, []string{"event", "error_type"}),

		commitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "commits_total",
			Help:        "Total number of history commits queued, by mode",
			ConstLabels: config.ConstLabels,
		}, []string{"mode"}),

		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frames_sent_total",
			Help:        "Total number of frames written to clients, by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "bytes_sent_total",
			Help:        "Total bytes written to clients",
			ConstLabels: config.ConstLabels,
		}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_sessions",
			Help:        "Number of live sessions, attached or detached",
			ConstLabels: config.ConstLabels,
		}),

		transportErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "websocket_errors_total",
			Help:        "Total WebSocket transport errors, by operation",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),
	}
}

// Prometheus creates event middleware that times every event and
// counts outcomes.
//
// Metrics collected here:
//   - urlbind_events_total: counter of events by name and status
//   - urlbind_event_duration_seconds: handler duration histogram
//   - urlbind_event_errors_total: counter of errors by name and category
//
// The session-level metrics (commits, frames, sessions, transport
// errors) come from PrometheusObserver; wire both for full coverage:
//
//	cfg := server.DefaultServerConfig()
//	cfg.EventMiddleware = []server.Middleware{middleware.Prometheus()}
//	cfg.Session.Observer = middleware.PrometheusObserver()
//	cfg.MetricsEnabled = true
func Prometheus(opts ...MetricsOption) server.Middleware {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	m := metricsFor(config)

	return func(c server.Ctx, next func() error) error {
		name := c.Event().Name
		if name == "" {
			name = "unknown"
		}

		start := time.Now()
		err := next()
		m.eventDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

		status := "success"
		if err != nil {
			status = "error"
			m.eventErrors.WithLabelValues(name, categorizeError(err)).Inc()
		}
		m.eventsTotal.WithLabelValues(name, status).Inc()

		return err
	}
}

// PrometheusObserver returns a server.Observer recording session and
// transport counters into the same registry as Prometheus.
func PrometheusObserver(opts ...MetricsOption) server.Observer {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &promObserver{m: metricsFor(config)}
}

type promObserver struct {
	m *metrics
}

var _ server.Observer = (*promObserver)(nil)

func (o *promObserver) RecordSessionStart() {
	o.m.activeSessions.Inc()
}

func (o *promObserver) RecordSessionEnd() {
	o.m.activeSessions.Dec()
}

func (o *promObserver) RecordCommit(mode string) {
	o.m.commitsTotal.WithLabelValues(mode).Inc()
}

func (o *promObserver) RecordFrameSent(frameType string, bytes int) {
	o.m.framesSent.WithLabelValues(frameType).Inc()
	o.m.bytesSent.Add(float64(bytes))
}

func (o *promObserver) RecordTransportError(op string) {
	o.m.transportErrors.WithLabelValues(op).Inc()
}

// categorizeError maps an error to a coarse label so error messages
// never become high-cardinality label values.
func categorizeError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "not found"):
		return "not_found"
	case strings.Contains(msg, "queue full"):
		return "queue_full"
	case strings.Contains(msg, "closed"):
		return "closed"
	case strings.Contains(msg, "websocket"):
		return "websocket"
	default:
		return "internal"
	}
}
