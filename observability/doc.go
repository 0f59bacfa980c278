// Package observability wires OpenTelemetry tracing and metrics for stagekit.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("stagedigest"))
//	defer tp.Shutdown(ctx)
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("stagedigest"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewStageMetrics(observability.Meter("stagekit"))
//
// A nil *StageMetrics is valid and records nothing.
package observability
