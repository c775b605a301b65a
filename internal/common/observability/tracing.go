package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"meminator/internal/common/config"
	"meminator/internal/common/logger"
)

// newTracerProvider creates a provider that always records spans and exports
// them to Jaeger only when tracing is enabled.
func newTracerProvider(serviceName string, cfg config.TracingConfig, log logger.Logger) *sdktrace.TracerProvider {
	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}

	if cfg.Enabled && cfg.JaegerEndpoint != "" {
		exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
		if err != nil {
			log.Warn("failed to create Jaeger exporter, spans will not be exported", map[string]interface{}{
				"endpoint": cfg.JaegerEndpoint,
				"error":    err.Error(),
			})
		} else {
			opts = append(opts, sdktrace.WithBatcher(exporter))
			log.Info("span export enabled", map[string]interface{}{
				"endpoint":    cfg.JaegerEndpoint,
				"sampleRatio": ratio,
			})
		}
	}

	return sdktrace.NewTracerProvider(opts...)
}
