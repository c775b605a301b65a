package observability

import (
	"context"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"meminator/internal/common/config"
	"meminator/internal/common/logger"
)

// Observability owns the meter and tracer providers of one service. Nothing is
// installed globally: components receive the tracer they need explicitly.
type Observability struct {
	meterProvider   *metric.MeterProvider
	tracerProvider  *sdktrace.TracerProvider
	meter           otelmetric.Meter
	requestCounter  otelmetric.Int64Counter
	requestDuration otelmetric.Float64Histogram
}

// New builds the providers for serviceName. reg receives the OTel meter
// collector; nil means the default Prometheus registerer.
func New(serviceName string, tracing config.TracingConfig, reg promclient.Registerer, log logger.Logger) *Observability {
	obs := &Observability{
		tracerProvider: newTracerProvider(serviceName, tracing, log),
	}

	opts := []prometheus.Option{}
	if reg != nil {
		opts = append(opts, prometheus.WithRegisterer(reg))
	}
	exporter, err := prometheus.New(opts...)
	if err != nil {
		log.Warn("failed to create Prometheus exporter, request metrics disabled", map[string]interface{}{
			"error": err.Error(),
		})
		obs.meter = noop.NewMeterProvider().Meter(serviceName)
	} else {
		obs.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter))
		obs.meter = obs.meterProvider.Meter(serviceName)
	}

	obs.requestCounter, _ = obs.meter.Int64Counter(
		"http_requests_processed",
		otelmetric.WithDescription("Number of HTTP requests processed"),
	)

	obs.requestDuration, _ = obs.meter.Float64Histogram(
		"http_requests_duration",
		otelmetric.WithDescription("HTTP request processing duration"),
		otelmetric.WithUnit("ms"),
	)

	return obs
}

// Tracer returns a named tracer from the service's provider.
func (o *Observability) Tracer(name string) trace.Tracer {
	return o.tracerProvider.Tracer(name)
}

func (o *Observability) RecordRequestProcessed(ctx context.Context, route string, status int) {
	if o.requestCounter != nil {
		o.requestCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("route", route),
			attribute.Int("status", status),
		))
	}
}

func (o *Observability) RecordRequestDuration(ctx context.Context, duration time.Duration, route string, status int) {
	if o.requestDuration != nil {
		o.requestDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("route", route),
			attribute.Int("status", status),
		))
	}
}

// Shutdown flushes pending spans and metrics.
func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}
