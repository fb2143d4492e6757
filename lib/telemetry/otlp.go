package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	serviceNamespace = "onlinemis"

	defaultMetricInterval = time.Second * 15
	exporterDialTimeout   = time.Second * 3
)

type transport string

const (
	transportGrpc transport = "grpc"
	transportHttp transport = "http"
)

// transport picks the exporter protocol of a signal, grpc wins when both
// endpoints are set.
func (c OtlpConnConfig) transport(signal string) (transport, string, error) {
	switch {
	case c.GrpcEndpoint != "":
		return transportGrpc, c.GrpcEndpoint, nil
	case c.HttpEndpoint != "":
		return transportHttp, c.HttpEndpoint, nil
	}
	return "", "", fmt.Errorf("otlp %s: no endpoint configured", signal)
}

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceNamespace(serviceNamespace),
		),
	)
}

func newTraceProvider(ctx context.Context, r *resource.Resource, config Config) (*trace.TracerProvider, error) {
	exporter, err := newSpanExporter(ctx, config.Otlp.Traces)
	if err != nil {
		return nil, err
	}
	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(r),
	), nil
}

func newSpanExporter(ctx context.Context, conn OtlpConnConfig) (trace.SpanExporter, error) {
	kind, endpoint, err := conn.transport("traces")
	if err != nil {
		return nil, err
	}
	slog.Info("span exporter initialized", "type", kind, "endpoint", endpoint, "headers", len(conn.Headers) > 0)

	ctx, cancel := context.WithTimeout(ctx, exporterDialTimeout)
	defer cancel()

	if kind == transportGrpc {
		return otlptracegrpc.New(
			ctx,
			otlptracegrpc.WithEndpointURL(endpoint),
			otlptracegrpc.WithHeaders(conn.Headers),
		)
	}
	return otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpointURL(endpoint),
		otlptracehttp.WithHeaders(conn.Headers),
	)
}

func newMetricProvider(ctx context.Context, r *resource.Resource, config Config) (*metric.MeterProvider, error) {
	exporter, err := newMetricExporter(ctx, config.Otlp.Metrics)
	if err != nil {
		return nil, err
	}

	interval := defaultMetricInterval
	if config.MetricIntervalSeconds > 0 {
		interval = time.Duration(config.MetricIntervalSeconds) * time.Second
	}
	return metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(interval))),
		metric.WithResource(r),
	), nil
}

func newMetricExporter(ctx context.Context, conn OtlpConnConfig) (metric.Exporter, error) {
	kind, endpoint, err := conn.transport("metrics")
	if err != nil {
		return nil, err
	}
	slog.Info("metric exporter initialized", "type", kind, "endpoint", endpoint, "headers", len(conn.Headers) > 0)

	ctx, cancel := context.WithTimeout(ctx, exporterDialTimeout)
	defer cancel()

	if kind == transportGrpc {
		return otlpmetricgrpc.New(
			ctx,
			otlpmetricgrpc.WithEndpointURL(endpoint),
			otlpmetricgrpc.WithHeaders(conn.Headers),
		)
	}
	return otlpmetrichttp.New(
		ctx,
		otlpmetrichttp.WithEndpointURL(endpoint),
		otlpmetrichttp.WithHeaders(conn.Headers),
	)
}
