package mcp

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/ragmcp/internal/mcp"

// Metrics holds all MCP-related metrics. Every measurement is recorded
// twice: once through an OTel meter taken from the global meter provider
// and once through a Prometheus registry scraped directly off
// cmd/ragmcpd's /metrics endpoint. No component installs a meter
// provider or an OTLP exporter, so in cmd/ragmcpd the OTel instruments
// export nothing and the Prometheus registry is where the §4.12
// aggregated counters can be read.
type Metrics struct {
	meter          metric.Meter
	logger         *zap.Logger
	invocations    metric.Int64Counter
	duration       metric.Float64Histogram
	errors         metric.Int64Counter
	activeRequests metric.Int64UpDownCounter

	promInvocations    *prometheus.CounterVec
	promDuration       *prometheus.HistogramVec
	promErrors         *prometheus.CounterVec
	promActiveRequests *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance and registers its
// Prometheus collectors against reg. Passing nil registers against the
// default global registry (the common case for a single-process
// ragmcpd); a non-nil reg is mainly useful in tests, which would
// otherwise hit "duplicate metrics collector registration" panics
// across repeated NewMetrics calls.
func NewMetrics(logger *zap.Logger, reg ...*prometheus.Registry) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init(promRegisterer(reg))
	return m
}

func promRegisterer(reg []*prometheus.Registry) prometheus.Registerer {
	if len(reg) > 0 && reg[0] != nil {
		return reg[0]
	}
	return prometheus.DefaultRegisterer
}

func (m *Metrics) init(reg prometheus.Registerer) {
	var err error

	// Total tool invocations by tool name
	m.invocations, err = m.meter.Int64Counter(
		"ragmcp.tool.invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		m.logger.Warn("failed to create invocations counter", zap.Error(err))
	}

	// Tool execution duration histogram
	m.duration, err = m.meter.Float64Histogram(
		"ragmcp.tool.duration_seconds",
		metric.WithDescription("Duration of MCP tool invocations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	// Error count by tool and reason
	m.errors, err = m.meter.Int64Counter(
		"ragmcp.tool.errors_total",
		metric.WithDescription("Total number of MCP tool errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}

	// Active concurrent requests gauge
	m.activeRequests, err = m.meter.Int64UpDownCounter(
		"ragmcp.tool.active_requests",
		metric.WithDescription("Number of currently active MCP tool requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create active requests gauge", zap.Error(err))
	}

	m.promInvocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ragmcp_tool_invocations_total",
		Help: "Total number of MCP tool invocations",
	}, []string{"tool"})
	m.promDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ragmcp_tool_duration_seconds",
		Help:    "Duration of MCP tool invocations",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	}, []string{"tool"})
	m.promErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ragmcp_tool_errors_total",
		Help: "Total number of MCP tool errors",
	}, []string{"tool", "reason"})
	m.promActiveRequests = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ragmcp_tool_active_requests",
		Help: "Number of currently active MCP tool requests",
	}, []string{"tool"})

	for _, c := range []prometheus.Collector{m.promInvocations, m.promDuration, m.promErrors, m.promActiveRequests} {
		if err := reg.Register(c); err != nil {
			m.logger.Warn("failed to register prometheus collector", zap.Error(err))
		}
	}
}

// RecordInvocation records a tool invocation metric.
func (m *Metrics) RecordInvocation(ctx context.Context, toolName string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("tool", toolName),
	}

	// Record invocation count
	if m.invocations != nil {
		m.invocations.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	m.promInvocations.WithLabelValues(toolName).Inc()

	// Record duration
	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	m.promDuration.WithLabelValues(toolName).Observe(duration.Seconds())

	// Record error if present
	if err != nil {
		reason := categorizeError(err)
		if m.errors != nil {
			errorAttrs := append(attrs, attribute.String("reason", reason))
			m.errors.Add(ctx, 1, metric.WithAttributes(errorAttrs...))
		}
		m.promErrors.WithLabelValues(toolName, reason).Inc()
	}
}

// IncrementActive increments the active requests counter.
func (m *Metrics) IncrementActive(ctx context.Context, toolName string) {
	if m.activeRequests != nil {
		m.activeRequests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", toolName),
		))
	}
	m.promActiveRequests.WithLabelValues(toolName).Inc()
}

// DecrementActive decrements the active requests counter.
func (m *Metrics) DecrementActive(ctx context.Context, toolName string) {
	if m.activeRequests != nil {
		m.activeRequests.Add(ctx, -1, metric.WithAttributes(
			attribute.String("tool", toolName),
		))
	}
	m.promActiveRequests.WithLabelValues(toolName).Dec()
}

// categorizeError categorizes an error into a reason string.
func categorizeError(err error) string {
	if err == nil {
		return ""
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "validation") || strings.Contains(errStr, "invalid"):
		return "validation_error"
	case strings.Contains(errStr, "not found"):
		return "not_found"
	case strings.Contains(errStr, "timeout"):
		return "timeout"
	case strings.Contains(errStr, "permission") || strings.Contains(errStr, "unauthorized"):
		return "auth_error"
	case strings.Contains(errStr, "vectorstore") || strings.Contains(errStr, "embedding") || strings.Contains(errStr, "qdrant"):
		return "storage_error"
	default:
		return "internal_error"
	}
}
