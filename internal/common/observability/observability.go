package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	submitCounter  otelmetric.Int64Counter
	submitDuration otelmetric.Float64Histogram
}

// New wires an OpenTelemetry meter (exported through Prometheus) and,
// when a Jaeger endpoint is configured, a tracer for submission spans.
func New(serviceName, jaegerEndpoint string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	submitCounter, _ := meter.Int64Counter(
		"leads.submitted",
		otelmetric.WithDescription("Number of lead submissions processed"),
	)

	submitDuration, _ := meter.Float64Histogram(
		"leads.submit.duration",
		otelmetric.WithDescription("Lead submission duration"),
		otelmetric.WithUnit("ms"),
	)

	o := &Observability{
		meterProvider:  provider,
		meter:          meter,
		submitCounter:  submitCounter,
		submitDuration: submitDuration,
	}

	if jaegerEndpoint != "" {
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerEndpoint)))
		if err != nil {
			log.Printf("Failed to create Jaeger exporter: %v", err)
		} else {
			tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
			otel.SetTracerProvider(tp)
			o.tracerProvider = tp
			o.tracer = tp.Tracer(serviceName)
		}
	}

	return o
}

// StartSubmissionSpan opens a trace span around one submission attempt.
func (o *Observability) StartSubmissionSpan(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	if o.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return o.tracer.Start(ctx, "lead.submit", trace.WithAttributes(
		attribute.String("session.id", sessionID),
	))
}

func (o *Observability) RecordSubmission(ctx context.Context, outcome string) {
	if o.submitCounter != nil {
		o.submitCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) RecordSubmissionDuration(ctx context.Context, duration time.Duration, outcome string) {
	if o.submitDuration != nil {
		o.submitDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
