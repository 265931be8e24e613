package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"aura.tool_execution.duration", m.ToolExecutionDuration},
		{"aura.search.duration", m.SearchDuration},
		{"aura.connect.duration", m.ConnectDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 0.456)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

// sumFor returns the value of the data point carrying key=value, or -1.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		if key == "" {
			return dp.Value
		}
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.AsString() == value {
				return dp.Value
			}
		}
	}
	return -1
}

func TestProviderRequestsCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "live", "ok")
	m.RecordProviderRequest(ctx, "live", "ok")
	m.RecordProviderRequest(ctx, "search", "error")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "aura.provider.requests", "status", "ok"); got != 2 {
		t.Errorf("ok requests = %d, want 2", got)
	}
	if got := sumFor(t, rm, "aura.provider.requests", "status", "error"); got != 1 {
		t.Errorf("error requests = %d, want 1", got)
	}
}

func TestToolCallsCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordToolCall(ctx, "setReminder", "ok")
	m.RecordToolCall(ctx, "webSearch", "error")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "aura.tool.calls", "tool", "setReminder"); got != 1 {
		t.Errorf("setReminder calls = %d, want 1", got)
	}
	if got := sumFor(t, rm, "aura.tool.calls", "status", "error"); got != 1 {
		t.Errorf("error calls = %d, want 1", got)
	}
}

func TestSessionErrorsCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSessionError(ctx, "microphone")
	m.RecordSessionError(ctx, "connection")
	m.RecordSessionError(ctx, "connection")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "aura.session.errors", "kind", "connection"); got != 2 {
		t.Errorf("connection errors = %d, want 2", got)
	}
}

func TestBreakerTransitionsCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordBreakerTransition(ctx, "search/gemini-search", "open")
	m.RecordBreakerTransition(ctx, "search/gemini-search", "half-open")
	m.RecordBreakerTransition(ctx, "search/gemini-search", "open")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "aura.provider.breaker_transitions", "state", "open"); got != 2 {
		t.Errorf("open transitions = %d, want 2", got)
	}
	if got := sumFor(t, rm, "aura.provider.breaker_transitions", "state", "half-open"); got != 1 {
		t.Errorf("half-open transitions = %d, want 1", got)
	}
}

func TestPlainCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RemindersFired.Add(ctx, 1)
	m.PlaybackChunks.Add(ctx, 3)
	m.MalformedChunks.Add(ctx, 2)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)
	m.ActiveSessions.Add(ctx, 1)

	rm := collect(t, reader)

	tests := []struct {
		name string
		want int64
	}{
		{"aura.reminders.fired", 1},
		{"aura.playback.chunks", 3},
		{"aura.playback.malformed_chunks", 2},
		{"aura.active_sessions", 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := sumFor(t, rm, tc.name, "", ""); got != tc.want {
				t.Errorf("value = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestHTTPRequestDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.HTTPRequestDuration.Record(ctx, 0.05,
		metric.WithAttributes(
			attribute.String("method", "GET"),
			attribute.String("path", "/healthz"),
		),
	)

	rm := collect(t, reader)
	met := findMetric(rm, "aura.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
