package observe

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitProvider_ServesRuntimeAndAuraMetrics(t *testing.T) {
	origMP, origTP := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(origMP)
		otel.SetTracerProvider(origTP)
	})

	ctx := context.Background()
	tel, err := InitProvider(ctx, ProviderConfig{})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.ToolExecutionDuration.Record(ctx, 0.02)

	rec := httptest.NewRecorder()
	tel.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{"go_goroutines", "aura_tool_execution_duration", `service_name="aura"`} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestInitProvider_ExportsSpansOnShutdown(t *testing.T) {
	origMP, origTP := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(origMP)
		otel.SetTracerProvider(origTP)
	})

	exp := retainingExporter{tracetest.NewInMemoryExporter()}
	tel, err := InitProvider(context.Background(), ProviderConfig{
		ServiceVersion: "v1.2.3",
		TraceExporter:  exp,
	})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}

	_, span := StartClientSpan(context.Background(), "session.connect", "live")
	EndSpan(span, nil)
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "session.connect" {
		t.Fatalf("exported spans = %v, want one session.connect", spans)
	}
	if v, _ := attrValue(spans[0].Resource.Attributes(), "service.version"); v != "v1.2.3" {
		t.Errorf("service.version = %q, want v1.2.3", v)
	}
}

// retainingExporter keeps its spans across Shutdown so they can be inspected.
type retainingExporter struct {
	*tracetest.InMemoryExporter
}

func (retainingExporter) Shutdown(context.Context) error { return nil }

var _ sdktrace.SpanExporter = retainingExporter{}
