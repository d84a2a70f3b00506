// Package observability sets up the otel meter and tracer providers and records
// matching measurements on both otel and prometheus instruments.
package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"matching-workers/internal/common/metrics"
	"matching-workers/internal/models"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	jobCounter   otelmetric.Int64Counter
	jobDuration  otelmetric.Float64Histogram
	runCounter   otelmetric.Int64Counter
	needCounter  otelmetric.Int64Counter
	needDuration otelmetric.Float64Histogram
}

// New exports metrics through the prometheus default registry and installs the
// providers globally.
func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	o, err := NewWithReader(serviceName, exporter)
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(o.meterProvider)
	otel.SetTracerProvider(o.tracerProvider)
	return o, nil
}

// NewWithReader builds an Observability on an explicit metric reader and span
// processors, without touching the globals.
func NewWithReader(serviceName string, reader metric.Reader, spans ...sdktrace.SpanProcessor) (*Observability, error) {
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	opts := make([]sdktrace.TracerProviderOption, 0, len(spans))
	for _, sp := range spans {
		opts = append(opts, sdktrace.WithSpanProcessor(sp))
	}
	tp := sdktrace.NewTracerProvider(opts...)

	meter := mp.Meter(serviceName)
	o := &Observability{
		meterProvider:  mp,
		tracerProvider: tp,
		tracer:         tp.Tracer(serviceName),
	}

	var errs []error
	var err error
	o.jobCounter, err = meter.Int64Counter("jobs.processed", otelmetric.WithDescription("Number of jobs processed"))
	errs = append(errs, err)
	o.jobDuration, err = meter.Float64Histogram("jobs.duration",
		otelmetric.WithDescription("Job processing duration"), otelmetric.WithUnit("ms"))
	errs = append(errs, err)
	o.runCounter, err = meter.Int64Counter("matching.runs", otelmetric.WithDescription("Matching runs"))
	errs = append(errs, err)
	o.needCounter, err = meter.Int64Counter("matching.needs", otelmetric.WithDescription("Needs resolved by matching runs"))
	errs = append(errs, err)
	o.needDuration, err = meter.Float64Histogram("matching.need.duration",
		otelmetric.WithDescription("Time spent resolving one need"), otelmetric.WithUnit("ms"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("create instruments: %w", err)
	}
	return o, nil
}

func (o *Observability) Tracer() trace.Tracer { return o.tracer }

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string, d time.Duration) {
	attrs := otelmetric.WithAttributes(attribute.String("task_type", taskType), attribute.String("status", status))
	o.jobCounter.Add(ctx, 1, attrs)
	o.jobDuration.Record(ctx, float64(d.Milliseconds()), attrs)
}

// RecordRun implements engine.Recorder.
func (o *Observability) RecordRun(ctx context.Context, mode models.ScorerMode, outcome string, _ time.Duration) {
	o.runCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("mode", string(mode)),
		attribute.String("outcome", outcome),
	))
	metrics.MatchingRuns.WithLabelValues(string(mode), outcome).Inc()
}

// RecordNeed implements engine.Recorder.
func (o *Observability) RecordNeed(ctx context.Context, mode models.ScorerMode, source, outcome string, ranked int, d time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String("mode", string(mode)),
		attribute.String("source", source),
		attribute.String("outcome", outcome),
	)
	o.needCounter.Add(ctx, 1, attrs)
	o.needDuration.Record(ctx, float64(d.Microseconds())/1000, attrs)

	metrics.MatchingNeeds.WithLabelValues(string(mode), source, outcome).Inc()
	metrics.MatchingNeedDuration.WithLabelValues(string(mode), source).Observe(d.Seconds())
	if source == "computed" {
		metrics.MatchingRankedCandidates.Observe(float64(ranked))
	}
}

func (o *Observability) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return errors.Join(o.tracerProvider.Shutdown(ctx), o.meterProvider.Shutdown(ctx))
}
