package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig("test-service")

	if cfg.ServiceName != "test-service" {
		t.Errorf("expected ServiceName 'test-service', got %s", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected Endpoint 'localhost:4318', got %s", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %f", cfg.SampleRate)
	}
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig("test-service")
	if cfg.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", cfg.Interval)
	}
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tc := range tests {
		if got := samplerFor(tc.rate).Description(); got != tc.want {
			t.Errorf("samplerFor(%v) = %q, want %q", tc.rate, got, tc.want)
		}
	}
}

func TestNewResource(t *testing.T) {
	res, err := newResource("svc", "1.2.3", "staging")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, kv := range res.Attributes() {
		if string(kv.Key) == "environment" && kv.Value.AsString() == "staging" {
			found = true
		}
	}
	if !found {
		t.Error("expected environment attribute on resource")
	}
}

func TestStageMetrics_Noop(t *testing.T) {
	m, err := NewStageMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}
	ctx := context.Background()
	m.RecordAdmit(ctx, "s")
	m.RecordRelease(ctx, "s")
	m.RecordSettle(ctx, "s", StatusDone, time.Millisecond)
	m.RecordBuffered(ctx, "s", 1)
	m.RecordViolation(ctx, "s")
	m.RecordHook(ctx, "s", "flush", StatusDone, time.Millisecond)
}

func TestStageMetrics_NilReceiver(t *testing.T) {
	var m *StageMetrics
	ctx := context.Background()
	m.RecordAdmit(ctx, "s")
	m.RecordRelease(ctx, "s")
	m.RecordSettle(ctx, "s", StatusFailed, 0)
	m.RecordBuffered(ctx, "s", -1)
	m.RecordViolation(ctx, "s")
	m.RecordHook(ctx, "s", "finalize", StatusDone, 0)
}

func sumInt64(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s is %T, not Sum[int64]", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestStageMetrics_Collected(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewStageMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		m.RecordAdmit(ctx, "digest")
	}
	m.RecordRelease(ctx, "digest")
	m.RecordSettle(ctx, "digest", StatusDone, 5*time.Millisecond)
	m.RecordViolation(ctx, "digest")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatal(err)
	}
	if got := sumInt64(t, rm, "stage.items.admitted"); got != 3 {
		t.Errorf("admitted = %d, want 3", got)
	}
	if got := sumInt64(t, rm, "stage.inflight"); got != 2 {
		t.Errorf("inflight = %d, want 2", got)
	}
	if got := sumInt64(t, rm, "stage.items.settled"); got != 1 {
		t.Errorf("settled = %d, want 1", got)
	}
	if got := sumInt64(t, rm, "stage.protocol.violations"); got != 1 {
		t.Errorf("violations = %d, want 1", got)
	}
}

func TestStartSpanAndSetSpanError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	_, span := tracer.Start(context.Background(), SpanStageFlush)
	SetSpanError(span, errors.New("flush failed"))
	SetSpanError(span, nil)
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status())
	}
	if len(spans[0].Events()) != 1 {
		t.Errorf("expected one error event, got %d", len(spans[0].Events()))
	}
}

func TestGlobalAccessors(t *testing.T) {
	if Tracer("t") == nil || Meter("m") == nil {
		t.Fatal("expected non-nil tracer and meter")
	}
	ctx, span := StartSpan(context.Background(), "op")
	defer span.End()
	if ctx == nil {
		t.Fatal("expected context")
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" || cfg.SampleRate != 1.0 || cfg.Interval != 15*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfig_InvalidSampleRate(t *testing.T) {
	cfg := Config{SampleRate: 2}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for sample_rate above 1")
	}
}

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{}, "svc", "dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("unexpected shutdown error: %v", err)
	}
}
