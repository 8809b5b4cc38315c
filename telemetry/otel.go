// Package telemetry adapts the OpenTelemetry trace API to the small
// core.Telemetry interface the client is wired with. Spans are exported
// to stdout; a kiosk-side client has no collector to ship to, so the
// stdout exporter doubles as a structured trace log.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/vendline/vendline/core"
)

// Provider implements core.Telemetry over an OTel tracer.
type Provider struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider

	mu       sync.Mutex
	counters map[string]float64
}

// New creates a telemetry provider exporting spans to stdout. The
// returned shutdown function flushes pending spans.
func New(serviceName string) (*Provider, func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	p := &Provider{
		tracer:   tp.Tracer(serviceName),
		provider: tp,
		counters: make(map[string]float64),
	}
	return p, tp.Shutdown, nil
}

// StartSpan starts a span named after the operation.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	ctx, span := p.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

// RecordMetric accumulates a named counter. The client has no metrics
// backend; counters are kept in memory for inspection and tests.
func (p *Provider) RecordMetric(name string, value float64, labels map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters[name] += value
}

// Counter returns the accumulated value for a metric name.
func (p *Provider) Counter(name string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters[name]
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() {
	s.span.End()
}

func (s *otelSpan) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (s *otelSpan) RecordError(err error) {
	if err != nil {
		s.span.RecordError(err)
	}
}
