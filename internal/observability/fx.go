package observability

import (
	"time"

	"github.com/trmhq/trm/internal/observability/logger"
	"github.com/trmhq/trm/internal/observability/metrics"
	"github.com/trmhq/trm/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(LoadConfig),
	fx.Provide(provideLoggerConfig),
	fx.Provide(provideTracingConfig),
	fx.Provide(provideMetricsConfig),
	fx.Provide(logger.New),
	fx.Provide(tracing.NewProvider),
	fx.Provide(metrics.NewProvider),
	fx.Provide(metrics.New),
	fx.Provide(metrics.NewHTTPMetrics),
	fx.Invoke(ensureTracingProvider),
)

func provideLoggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName:         cfg.ServiceName,
		Environment:         cfg.Environment,
		Version:             cfg.Version,
		Level:               cfg.LogLevel,
		Format:              cfg.LogFormat,
		Debug:               cfg.Debug(),
		IncludeCaller:       true,
		IncludeStackOnError: true,
	}
}

func provideTracingConfig(cfg Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.OtelEnabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.Version,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		SamplingRatio:    cfg.OtelSamplingRatio,
	}
}

func provideMetricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.OtelEnabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.Version,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		ExportInterval:   30 * time.Second,
	}
}

// ensureTracingProvider forces provider construction even when nothing
// else in the graph depends on it.
func ensureTracingProvider(_ *sdktrace.TracerProvider) {}
