// Package observability wires OpenTelemetry tracing and Prometheus metrics
// for the runtime. Disabled observability degrades to noop providers so
// instrumented code never branches.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config controls tracing and metrics setup.
type Config struct {
	Enabled     bool
	ServiceName string
	// TraceStdout exports spans to stdout; useful without a collector.
	TraceStdout bool
}

// Manager owns the tracer and meter providers plus the runtime metric
// instruments.
type Manager struct {
	mu             sync.RWMutex
	cfg            Config
	tracerProvider trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	metrics        *Metrics
}

// Metrics are the instruments recorded by the transport and workflow layers.
type Metrics struct {
	RequestDuration metric.Float64Histogram
	RequestsTotal   metric.Int64Counter
	RequestErrors   metric.Int64Counter
	StreamChunks    metric.Int64Counter
	TasksTotal      metric.Int64Counter
	NodeDuration    metric.Float64Histogram
}

// NewManager creates a manager; Initialize must be called before use.
func NewManager(cfg Config) *Manager {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "agentwire"
	}
	return &Manager{cfg: cfg, tracerProvider: noop.NewTracerProvider()}
}

// Initialize builds the providers. With Enabled false it is a no-op and all
// instruments stay nil-safe.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.cfg.Enabled {
		return nil
	}

	var traceOpts []sdktrace.TracerProviderOption
	if m.cfg.TraceStdout {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tp)
	m.tracerProvider = tp

	promExporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	m.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(promExporter))

	meter := m.meterProvider.Meter(m.cfg.ServiceName)
	metrics := &Metrics{}

	if metrics.RequestDuration, err = meter.Float64Histogram(
		"agentwire_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	); err != nil {
		return err
	}
	if metrics.RequestsTotal, err = meter.Int64Counter(
		"agentwire_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
	); err != nil {
		return err
	}
	if metrics.RequestErrors, err = meter.Int64Counter(
		"agentwire_http_request_errors_total",
		metric.WithDescription("Total HTTP requests answered with status >= 400"),
	); err != nil {
		return err
	}
	if metrics.StreamChunks, err = meter.Int64Counter(
		"agentwire_stream_chunks_total",
		metric.WithDescription("Total SSE chunks written"),
	); err != nil {
		return err
	}
	if metrics.TasksTotal, err = meter.Int64Counter(
		"agentwire_tasks_total",
		metric.WithDescription("Total tasks dispatched"),
	); err != nil {
		return err
	}
	if metrics.NodeDuration, err = meter.Float64Histogram(
		"agentwire_workflow_node_duration_seconds",
		metric.WithDescription("Workflow node execution duration in seconds"),
	); err != nil {
		return err
	}

	m.metrics = metrics
	return nil
}

// Tracer returns a named tracer (noop when disabled).
func (m *Manager) Tracer(name string) trace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracerProvider.Tracer(name)
}

// GetMetrics returns the instruments, or nil when disabled.
func (m *Manager) GetMetrics() *Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// MetricsHandler serves the Prometheus scrape endpoint.
func (m *Manager) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes exporters.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sd, ok := m.tracerProvider.(interface{ Shutdown(context.Context) error }); ok {
		if err := sd.Shutdown(ctx); err != nil {
			return err
		}
	}
	if m.meterProvider != nil {
		return m.meterProvider.Shutdown(ctx)
	}
	return nil
}
