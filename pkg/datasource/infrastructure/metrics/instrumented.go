package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/tigerroll/datasource/pkg/datasource/core/dbconfig"
	"github.com/tigerroll/datasource/pkg/datasource/core/port"
)

const instrumentationName = "github.com/tigerroll/datasource"

// Instrumented decorates a port.Provider with metrics and tracing. Results and errors pass through unchanged.
type Instrumented struct {
	next     port.Provider
	recorder *PrometheusRecorder
	tracer   trace.Tracer
	counter  metric.Int64Counter
}

// NewInstrumented wraps next. A nil recorder disables Prometheus recording.
// next is upgraded first, so a successful call always carries a handle.
func NewInstrumented(next port.Provider, recorder *PrometheusRecorder, telemetry *Telemetry) (*Instrumented, error) {
	if telemetry == nil {
		telemetry = NoopTelemetry()
	}
	counter, err := telemetry.MeterProvider.Meter(instrumentationName).Int64Counter(
		"datasource.resolutions",
		metric.WithDescription("Number of data source resolutions."),
	)
	if err != nil {
		return nil, err
	}
	return &Instrumented{
		next:     port.Upgrade(next),
		recorder: recorder,
		tracer:   telemetry.TracerProvider.Tracer(instrumentationName),
		counter:  counter,
	}, nil
}

// ResolveName implements port.Provider.
func (i *Instrumented) ResolveName(ctx context.Context, name string) (port.DataSource, error) {
	return i.observe(ctx, port.OpResolveName, name, 0, func(ctx context.Context) (port.DataSource, error) {
		return i.next.ResolveName(ctx, name)
	})
}

// ResolveTyped implements port.Provider.
func (i *Instrumented) ResolveTyped(ctx context.Context, name string, typ port.Type) (port.DataSource, error) {
	return i.observe(ctx, port.OpResolveTyped, name, typ, func(ctx context.Context) (port.DataSource, error) {
		return i.next.ResolveTyped(ctx, name, typ)
	})
}

// ResolveFromConfig implements port.Provider. The descriptor's password is never recorded.
func (i *Instrumented) ResolveFromConfig(ctx context.Context, desc dbconfig.DatabaseConfig, typ port.Type) (port.DataSource, error) {
	return i.observe(ctx, port.OpResolveFromConfig, desc.Name, typ, func(ctx context.Context) (port.DataSource, error) {
		return i.next.ResolveFromConfig(ctx, desc, typ)
	})
}

// Invalidate implements port.Provider.
func (i *Instrumented) Invalidate(ctx context.Context, name string, typ port.Type) (port.DataSource, error) {
	return i.observe(ctx, port.OpInvalidate, name, typ, func(ctx context.Context) (port.DataSource, error) {
		return i.next.Invalidate(ctx, name, typ)
	})
}

func (i *Instrumented) observe(ctx context.Context, op, name string, typ port.Type, call func(context.Context) (port.DataSource, error)) (port.DataSource, error) {
	attrs := []attribute.KeyValue{
		attribute.String("datasource.operation", op),
		attribute.String("datasource.name", name),
		attribute.String("datasource.type", typeLabel(typ)),
	}
	ctx, span := i.tracer.Start(ctx, "datasource."+op, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	ds, err := call(ctx)
	outcome := Outcome(err)

	if i.recorder != nil {
		i.recorder.Record(op, typ, outcome, time.Since(start))
	}
	i.counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("datasource.operation", op),
		attribute.String("datasource.type", typeLabel(typ)),
		attribute.String("datasource.outcome", outcome),
	))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return ds, err
	}
	span.SetAttributes(
		attribute.String("datasource.handle_id", ds.ID()),
		attribute.String("datasource.resolved_type", ds.Type().String()),
	)
	return ds, nil
}

var _ port.Provider = (*Instrumented)(nil)
