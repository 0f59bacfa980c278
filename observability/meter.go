package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/stagekit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Settlement statuses recorded on stage.items.settled.
const (
	StatusDone      = "done"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

// StageMetrics holds the instruments a stage records into.
type StageMetrics struct {
	admitted     metric.Int64Counter
	settled      metric.Int64Counter
	violations   metric.Int64Counter
	inFlight     metric.Int64UpDownCounter
	buffered     metric.Int64UpDownCounter
	taskDuration metric.Float64Histogram
	hookDuration metric.Float64Histogram
}

// NewStageMetrics creates stage instruments on the given meter.
func NewStageMetrics(meter metric.Meter) (*StageMetrics, error) {
	admitted, err := meter.Int64Counter("stage.items.admitted",
		metric.WithDescription("Items admitted into a stage"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stage.items.admitted counter: %w", err)
	}

	settled, err := meter.Int64Counter("stage.items.settled",
		metric.WithDescription("Items whose transform resolved, by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stage.items.settled counter: %w", err)
	}

	violations, err := meter.Int64Counter("stage.protocol.violations",
		metric.WithDescription("Completion contract violations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stage.protocol.violations counter: %w", err)
	}

	inFlight, err := meter.Int64UpDownCounter("stage.inflight",
		metric.WithDescription("Admission slots currently occupied"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stage.inflight gauge: %w", err)
	}

	buffered, err := meter.Int64UpDownCounter("stage.buffered",
		metric.WithDescription("Completed items held for in-order release"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stage.buffered gauge: %w", err)
	}

	taskDuration, err := meter.Float64Histogram("stage.task.duration",
		metric.WithDescription("Time from admission to settlement"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stage.task.duration histogram: %w", err)
	}

	hookDuration, err := meter.Float64Histogram("stage.hook.duration",
		metric.WithDescription("Time from hook invocation to resolution"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stage.hook.duration histogram: %w", err)
	}

	return &StageMetrics{
		admitted:     admitted,
		settled:      settled,
		violations:   violations,
		inFlight:     inFlight,
		buffered:     buffered,
		taskDuration: taskDuration,
		hookDuration: hookDuration,
	}, nil
}

func stageAttr(stage string) attribute.KeyValue {
	return attribute.String(AttrStageName, stage)
}

// RecordAdmit counts an admission and occupies a slot.
func (m *StageMetrics) RecordAdmit(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(stageAttr(stage))
	m.admitted.Add(ctx, 1, attrs)
	m.inFlight.Add(ctx, 1, attrs)
}

// RecordRelease frees a slot.
func (m *StageMetrics) RecordRelease(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.inFlight.Add(ctx, -1, metric.WithAttributes(stageAttr(stage)))
}

// RecordSettle records a transform resolution.
func (m *StageMetrics) RecordSettle(ctx context.Context, stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.settled.Add(ctx, 1, metric.WithAttributes(stageAttr(stage), attribute.String("status", status)))
	m.taskDuration.Record(ctx, d.Seconds(), metric.WithAttributes(stageAttr(stage)))
}

// RecordBuffered adjusts the count of items held for ordered release.
func (m *StageMetrics) RecordBuffered(ctx context.Context, stage string, delta int64) {
	if m == nil {
		return
	}
	m.buffered.Add(ctx, delta, metric.WithAttributes(stageAttr(stage)))
}

// RecordViolation counts a completion contract violation.
func (m *StageMetrics) RecordViolation(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.violations.Add(ctx, 1, metric.WithAttributes(stageAttr(stage)))
}

// RecordHook records a finalize or flush hook resolution.
func (m *StageMetrics) RecordHook(ctx context.Context, stage, hook, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.hookDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		stageAttr(stage),
		attribute.String("hook", hook),
		attribute.String("status", status),
	))
}
