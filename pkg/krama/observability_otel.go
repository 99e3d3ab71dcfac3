package krama

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// OTelObserver implements Observer using OpenTelemetry for traces and metrics.
// This provides automatic integration with OTLP exporters (Jaeger, Tempo, Datadog, etc.).
//
// Example:
//
//	tracer := otel.Tracer("krama")
//	meter := otel.Meter("krama")
//	observer, _ := krama.NewOTelObserver(tracer, meter)
//	pipe := krama.New(krama.WithObserver(observer))
type OTelObserver struct {
	tracer trace.Tracer

	// Metrics
	runDuration       metric.Float64Histogram
	stageDuration     metric.Float64Histogram
	cacheHits         metric.Int64Counter
	cacheMisses       metric.Int64Counter
	cacheCheckLatency metric.Float64Histogram
	notCacheable      metric.Int64Counter
	errors            metric.Int64Counter
}

// NewOTelObserver creates an OpenTelemetry observer.
func NewOTelObserver(tracer trace.Tracer, meter metric.Meter) (*OTelObserver, error) {
	runDuration, err := meter.Float64Histogram(
		"krama.run.duration",
		metric.WithDescription("Duration of pipeline runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run duration histogram: %w", err)
	}

	stageDuration, err := meter.Float64Histogram(
		"krama.stage.duration",
		metric.WithDescription("Duration of stage execution in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage duration histogram: %w", err)
	}

	cacheHits, err := meter.Int64Counter(
		"krama.cache.hits",
		metric.WithDescription("Number of cache hits"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache hits counter: %w", err)
	}

	cacheMisses, err := meter.Int64Counter(
		"krama.cache.misses",
		metric.WithDescription("Number of cache misses"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache misses counter: %w", err)
	}

	cacheCheckLatency, err := meter.Float64Histogram(
		"krama.cache.check_latency",
		metric.WithDescription("Latency of cache lookups in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache latency histogram: %w", err)
	}

	notCacheable, err := meter.Int64Counter(
		"krama.cache.not_cacheable",
		metric.WithDescription("Number of invocations that could not be cached"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create not-cacheable counter: %w", err)
	}

	errors, err := meter.Int64Counter(
		"krama.stage.errors",
		metric.WithDescription("Number of stage errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create errors counter: %w", err)
	}

	return &OTelObserver{
		tracer:            tracer,
		runDuration:       runDuration,
		stageDuration:     stageDuration,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		cacheCheckLatency: cacheCheckLatency,
		notCacheable:      notCacheable,
		errors:            errors,
	}, nil
}

func (o *OTelObserver) OnRunStart(ctx context.Context, event *RunStartEvent) {
	// Create a span for the entire run
	_, span := o.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("run_id", event.RunID),
			attribute.Int("stages", len(event.Stages)),
		),
	)
	// Note: In real usage, the span should be stored in context and ended in OnRunEnd
	// For simplicity, we're not managing span lifecycle here - users should use trace.SpanFromContext
	_ = span
}

func (o *OTelObserver) OnRunEnd(ctx context.Context, event *RunEndEvent) {
	// End the span from context
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		if event.Error != nil {
			span.SetStatus(codes.Error, event.Error.Error())
			span.RecordError(event.Error)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}

	// Record duration metric
	attrs := []attribute.KeyValue{
		attribute.String("run_id", event.RunID),
		attribute.Bool("success", event.Error == nil),
	}
	o.runDuration.Record(ctx, event.Duration.Seconds(), metric.WithAttributes(attrs...))
}

func (o *OTelObserver) OnStageStart(ctx context.Context, event *StageStartEvent) {
	_, span := o.tracer.Start(ctx, event.Stage,
		trace.WithAttributes(
			attribute.String("run_id", event.RunID),
			attribute.Int("index", event.Index),
			attribute.String("stage", event.Stage),
		),
	)
	_ = span
}

func (o *OTelObserver) OnStageEnd(ctx context.Context, event *StageEndEvent) {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		if event.Error != nil {
			span.SetStatus(codes.Error, event.Error.Error())
			span.RecordError(event.Error)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.SetAttributes(
			attribute.Bool("panicked", event.Panicked),
		)
		span.End()
	}

	// Record metrics
	attrs := []attribute.KeyValue{
		attribute.String("stage", event.Stage),
		attribute.Bool("success", event.Error == nil),
		attribute.Bool("panicked", event.Panicked),
	}

	o.stageDuration.Record(ctx, event.Duration.Seconds(), metric.WithAttributes(attrs...))

	if event.Error != nil {
		o.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", event.Stage),
		))
	}
}

func (o *OTelObserver) OnIntercept(ctx context.Context, event *InterceptEvent) {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.AddEvent("intercept", trace.WithAttributes(
			attribute.String("stage", event.Stage),
			attribute.String("callable", event.Callable),
		))
	}
}

func (o *OTelObserver) OnCacheCheck(ctx context.Context, event *CacheCheckEvent) {
	if event.NotCacheable {
		o.notCacheable.Add(ctx, 1, metric.WithAttributes(
			attribute.String("callable", event.Callable),
		))
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("callable", event.Callable),
	}

	if event.Hit {
		o.cacheHits.Add(ctx, 1, metric.WithAttributes(attrs...))
	} else {
		o.cacheMisses.Add(ctx, 1, metric.WithAttributes(attrs...))
	}

	o.cacheCheckLatency.Record(ctx, event.Latency.Seconds(), metric.WithAttributes(attrs...))

	// Add trace event
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.AddEvent("cache_check", trace.WithAttributes(
			attribute.Bool("hit", event.Hit),
			attribute.String("callable", event.Callable),
		))
	}
}
