package middleware

import (
	"context"

	"github.com/urlbind-dev/urlbind/pkg/server"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTracerName = "urlbind"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "urlbind").
	TracerName string

	// IncludeLocation includes the session's mirrored URL in the
	// span. Query strings can carry user input, so this is opt-in.
	IncludeLocation bool

	// Filter determines which events to trace. Return true to trace
	// the event. If nil, all events are traced.
	Filter func(c server.Ctx) bool

	// AttributeExtractor extracts custom attributes from the context,
	// called for each traced event.
	AttributeExtractor func(c server.Ctx) []attribute.KeyValue

	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithIncludeLocation enables recording the mirrored URL on spans.
func WithIncludeLocation(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeLocation = include
	}
}

// WithEventFilter sets a filter function for events.
func WithEventFilter(filter func(c server.Ctx) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(c server.Ctx) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// OpenTelemetry creates event middleware that opens a span per event.
//
// Each span carries the event name and sequence plus the session ID;
// errors from the handler chain mark the span status. The span's
// context replaces the event's StdContext so downstream calls made
// from handlers join the trace.
//
// The tracer comes from the global tracer provider; configure it in
// main() before starting the server:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) server.Middleware {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)

	return func(c server.Ctx, next func() error) error {
		if config.Filter != nil && !config.Filter(c) {
			return next()
		}

		ev := c.Event()
		attrs := []attribute.KeyValue{
			attribute.String("urlbind.event", ev.Name),
			attribute.Int64("urlbind.event_seq", int64(ev.Seq)),
		}
		if sess := c.Session(); sess != nil {
			attrs = append(attrs, attribute.String("urlbind.session_id", sess.ID))
		}
		if config.IncludeLocation {
			attrs = append(attrs, attribute.String("urlbind.location", c.Location()))
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(c)...)
		}

		spanCtx, span := config.tracer.Start(
			c.StdContext(),
			"urlbind.event "+ev.Name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		c.SetStdContext(spanCtx)
		c.SetValue(spanContextKey, spanCtx)

		err := next()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	}
}

// spanContextKey is the Ctx value key holding the span context.
const spanContextKey = "middleware.span_context"

// SpanFromCtx retrieves the current trace span from the event context.
// Returns a no-op span when the event is not traced.
//
//	s.HandleEvent("filter.select", func(c server.Ctx, v string) error {
//	    middleware.SpanFromCtx(c).SetAttributes(attribute.String("tag", v))
//	    ...
//	})
func SpanFromCtx(c server.Ctx) trace.Span {
	if spanCtx, ok := c.Value(spanContextKey).(context.Context); ok {
		return trace.SpanFromContext(spanCtx)
	}
	return trace.SpanFromContext(context.Background())
}
