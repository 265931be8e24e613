// Package observe provides application-wide observability primitives for
// Aura: OpenTelemetry metrics, distributed tracing, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// bridges them into a Prometheus registry served on /metrics. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Aura metrics.
const meterName = "github.com/MrWong99/aura"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ToolExecutionDuration tracks tool dispatch latency. Use with attribute:
	//   attribute.String("tool", ...)
	ToolExecutionDuration metric.Float64Histogram

	// SearchDuration tracks web search latency.
	SearchDuration metric.Float64Histogram

	// ConnectDuration tracks the live session handshake latency.
	ConnectDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// RemindersFired counts reminder notifications.
	RemindersFired metric.Int64Counter

	// PlaybackChunks counts inbound audio chunks scheduled for playback.
	PlaybackChunks metric.Int64Counter

	// MalformedChunks counts inbound audio chunks dropped as malformed.
	MalformedChunks metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Use with
	// attributes:
	//   attribute.String("breaker", ...), attribute.String("state", ...)
	BreakerTransitions metric.Int64Counter

	// --- Error counters ---

	// SessionErrors counts terminal session errors. Use with attribute:
	//   attribute.String("kind", ...)
	SessionErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live voice sessions (0 or 1).
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for interactive voice latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ToolExecutionDuration, err = m.Float64Histogram("aura.tool_execution.duration",
		metric.WithDescription("Latency of tool call dispatch."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SearchDuration, err = m.Float64Histogram("aura.search.duration",
		metric.WithDescription("Latency of search-augmented generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ConnectDuration, err = m.Float64Histogram("aura.connect.duration",
		metric.WithDescription("Latency of the live session handshake."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("aura.provider.requests",
		metric.WithDescription("Total provider API requests by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("aura.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.RemindersFired, err = m.Int64Counter("aura.reminders.fired",
		metric.WithDescription("Total reminder notifications."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackChunks, err = m.Int64Counter("aura.playback.chunks",
		metric.WithDescription("Total inbound audio chunks scheduled for playback."),
	); err != nil {
		return nil, err
	}
	if met.MalformedChunks, err = m.Int64Counter("aura.playback.malformed_chunks",
		metric.WithDescription("Total inbound audio chunks dropped as malformed."),
	); err != nil {
		return nil, err
	}

	if met.BreakerTransitions, err = m.Int64Counter("aura.provider.breaker_transitions",
		metric.WithDescription("Circuit breaker state changes by breaker and new state."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.SessionErrors, err = m.Int64Counter("aura.session.errors",
		metric.WithDescription("Total terminal session errors by kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("aura.active_sessions",
		metric.WithDescription("Number of live voice sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("aura.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a provider request counter increment with the
// standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordToolCall records a tool call counter increment with the standard
// attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordSessionError records a terminal session error of the given kind.
func (m *Metrics) RecordSessionError(ctx context.Context, kind string) {
	m.SessionErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordBreakerTransition records that the named breaker entered state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, state string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("breaker", breaker),
			attribute.String("state", state),
		),
	)
}
