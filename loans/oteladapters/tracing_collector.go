package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/schoollib/loanengine/loans"
)

// TracingCollector implements loans.TracingCollector using the OpenTelemetry
// tracing API, creating spans for loan store operations and propagating
// trace context automatically.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector creates an OpenTelemetry tracing collector.
// The tracer should come from your OpenTelemetry TracerProvider.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan creates a new span with the given name and attributes.
func (t *TracingCollector) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, loans.SpanContext) {
	spanOptions := make([]trace.SpanStartOption, 0, len(attrs))

	for key, value := range attrs {
		spanOptions = append(spanOptions, trace.WithAttributes(attribute.String(key, value)))
	}

	spanCtx, span := t.tracer.Start(ctx, name, spanOptions...)

	return spanCtx, &otelSpanContext{span: span}
}

// FinishSpan completes a span with the given status and final attributes.
func (t *TracingCollector) FinishSpan(spanCtx loans.SpanContext, status string, attrs map[string]string) {
	wrapped, ok := spanCtx.(*otelSpanContext)
	if !ok {
		return
	}

	for key, value := range attrs {
		wrapped.span.SetAttributes(attribute.String(key, value))
	}

	wrapped.SetStatus(status)
	wrapped.span.End()
}

var _ loans.TracingCollector = (*TracingCollector)(nil)

// otelSpanContext implements loans.SpanContext by wrapping an OpenTelemetry span.
type otelSpanContext struct {
	span trace.Span
}

// SetStatus maps generic status strings onto OpenTelemetry status codes.
func (s *otelSpanContext) SetStatus(status string) {
	switch status {
	case "ok", "success", "completed":
		s.span.SetStatus(codes.Ok, "")
	case "error", "failed", "failure":
		s.span.SetStatus(codes.Error, "operation failed")
	case "conflict":
		s.span.SetStatus(codes.Error, "concurrency conflict")
	default:
		s.span.SetAttributes(attribute.String("status", status))
	}
}

// AddAttribute adds an attribute to the span.
func (s *otelSpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

var _ loans.SpanContext = (*otelSpanContext)(nil)
