package exporters

import (
	"fmt"

	"github.com/hilthontt/letschat/infrastructure/config"
	"github.com/prometheus/otlptranslator"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricSdk "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Prometheus returns a meter exported on the default Prometheus registry.
// Instrument names are kept as written so dashboards match the constants
// in the metrics package.
func Prometheus(cfg config.JaegerConfig) (metric.Meter, error) {
	name := cfg.ServiceName
	if name == "" {
		name = defaultAppName
	}

	exporter, err := prometheus.New(
		prometheus.WithoutTargetInfo(),
		prometheus.WithTranslationStrategy(otlptranslator.NoTranslation),
	)
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}

	provider := metricSdk.NewMeterProvider(
		metricSdk.WithReader(exporter),
		metricSdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(name),
			semconv.ServiceVersion(cfg.ServiceVersion),
		)),
	)
	return provider.Meter(name, metric.WithInstrumentationVersion(cfg.ServiceVersion)), nil
}
