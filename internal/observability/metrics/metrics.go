package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the meter provider.
type Config struct {
	Enabled          bool
	ServiceName      string
	ServiceVersion   string
	Environment      string
	ExporterEndpoint string
	ExporterProtocol string
	ExportInterval   time.Duration
}

// NewProvider configures and registers the global meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		return nil, err
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Metrics exposes counters for network and referral operations.
type Metrics struct {
	edgesInserted       metric.Int64Counter
	earningsRecorded    metric.Int64Counter
	referralConversions metric.Int64Counter
	rateLimitAllowed    metric.Int64Counter
	rateLimitDenied     metric.Int64Counter
}

// New builds the domain counters from the given meter provider.
func New(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter("trm")

	edgesInserted, err := meter.Int64Counter("network_edges_inserted_total",
		metric.WithDescription("Closure table rows written during member registration"))
	if err != nil {
		return nil, err
	}
	earningsRecorded, err := meter.Int64Counter("network_earnings_recorded_total",
		metric.WithDescription("Commission credits applied to ancestor edges"))
	if err != nil {
		return nil, err
	}
	referralConversions, err := meter.Int64Counter("referral_conversions_total",
		metric.WithDescription("Referrals transitioned to hired"))
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("ratelimit_allowed_total",
		metric.WithDescription("Requests admitted by the token bucket"))
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("ratelimit_denied_total",
		metric.WithDescription("Requests rejected by the token bucket"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		edgesInserted:       edgesInserted,
		earningsRecorded:    earningsRecorded,
		referralConversions: referralConversions,
		rateLimitAllowed:    rateLimitAllowed,
		rateLimitDenied:     rateLimitDenied,
	}, nil
}

func (m *Metrics) RecordEdgesInserted(ctx context.Context, count int64, attrs ...attribute.KeyValue) {
	if m == nil || m.edgesInserted == nil {
		return
	}
	m.edgesInserted.Add(ctx, count, metric.WithAttributes(FilterAttributes(attrs)...))
}

func (m *Metrics) RecordEarnings(ctx context.Context, credits int64, attrs ...attribute.KeyValue) {
	if m == nil || m.earningsRecorded == nil {
		return
	}
	m.earningsRecorded.Add(ctx, credits, metric.WithAttributes(FilterAttributes(attrs)...))
}

func (m *Metrics) RecordReferralConversion(ctx context.Context, attrs ...attribute.KeyValue) {
	if m == nil || m.referralConversions == nil {
		return
	}
	m.referralConversions.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attrs)...))
}

func (m *Metrics) RecordRateLimit(ctx context.Context, allowed bool, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	counter := m.rateLimitAllowed
	if !allowed {
		counter = m.rateLimitDenied
	}
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attrs)...))
}

// allowedAttributes bounds metric cardinality to coarse labels.
var allowedAttributes = map[string]struct{}{
	"org_id":     {},
	"depth":      {},
	"policy":     {},
	"status":     {},
	"result":     {},
	"route":      {},
	"method":     {},
	"error_type": {},
}

// FilterAttributes drops attributes outside the allowlist.
func FilterAttributes(attrs []attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedAttributes[string(attr.Key)]; ok {
			filtered = append(filtered, attr)
		}
	}
	return filtered
}

// HTTPMetrics instruments inbound HTTP traffic.
type HTTPMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func NewHTTPMetrics(provider metric.MeterProvider) (*HTTPMetrics, error) {
	meter := provider.Meter("trm/http")

	requests, err := meter.Int64Counter("http_server_requests_total",
		metric.WithDescription("Completed HTTP requests"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("http_server_duration_ms",
		metric.WithDescription("HTTP request duration in milliseconds"))
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{requests: requests, duration: duration}, nil
}

// GinMiddleware records request counts and latency per route.
func (m *HTTPMetrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		attrs := metric.WithAttributes(
			attribute.String("route", route),
			attribute.String("method", c.Request.Method),
			attribute.String("status", statusClass(c.Writer.Status())),
		)
		ctx := c.Request.Context()
		if m.requests != nil {
			m.requests.Add(ctx, 1, attrs)
		}
		if m.duration != nil {
			m.duration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
		}
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
