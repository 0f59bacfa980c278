package stage

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/stagekit/logger"
	"github.com/kbukum/stagekit/observability"
)

const tracerName = "github.com/kbukum/stagekit/stage"

// Option customizes a Stage.
type Option func(*options)

type options struct {
	ctx     context.Context
	log     *logger.Logger
	metrics *observability.StageMetrics
	tracer  trace.Tracer
	runID   string
}

func defaultOptions() options {
	return options{
		ctx:    context.Background(),
		tracer: observability.Tracer(tracerName),
	}
}

// WithContext sets the context passed to transforms and hooks and used as
// the parent of the stage spans.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// WithLogger sets the logger. Defaults to the global logger tagged with the
// "stage" component.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records stage instruments. Without it nothing is recorded.
func WithMetrics(m *observability.StageMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithRunID fixes the run ID instead of generating one.
func WithRunID(id string) Option {
	return func(o *options) { o.runID = id }
}
