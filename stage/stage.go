package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/stagekit/errors"
	"github.com/kbukum/stagekit/executor"
	"github.com/kbukum/stagekit/logger"
	"github.com/kbukum/stagekit/observability"
)

// Stage runs a Transform over delivered items. Create one with New.
type Stage[In, Out any] struct {
	cfg   Config
	id    string
	fn    Transform[In, Out]
	hooks Hooks[Out]
	exec  executor.Executor
	sub   Substrate[Out]

	ctx     context.Context
	span    trace.Span
	tracer  trace.Tracer
	log     *logger.Logger
	metrics *observability.StageMetrics

	gate  *gate
	order *orderBuffer[Out]
	coord coordinator

	// outbox holds outputs that met a substrate that was not ready.
	outbox []Out

	nextSeq  uint64
	admitted uint64
	released uint64

	waiting         bool
	redeliverQueued bool
	advanceQueued   bool
	flushDeferred   bool
	finished        bool
	completed       bool
	err             error
}

// New creates a stage in the Active phase.
func New[In, Out any](
	cfg Config,
	fn Transform[In, Out],
	hooks Hooks[Out],
	exec executor.Executor,
	sub Substrate[Out],
	opts ...Option,
) (*Stage[In, Out], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case fn == nil:
		return nil, errors.MissingField("transform")
	case exec == nil:
		return nil, errors.MissingField("executor")
	case sub == nil:
		return nil, errors.MissingField("substrate")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	if o.log == nil {
		o.log = logger.WithComponent("stage")
	}

	s := &Stage[In, Out]{
		cfg:     cfg,
		id:      o.runID,
		fn:      fn,
		hooks:   hooks,
		exec:    exec,
		sub:     sub,
		tracer:  o.tracer,
		metrics: o.metrics,
		gate:    newGate(cfg.MaxConcurrency),
		log: o.log.WithFields(logger.Fields(
			logger.FieldStage, cfg.Name,
			logger.FieldRunID, o.runID,
		)),
	}
	if cfg.PreserveOrder {
		s.order = newOrderBuffer[Out]()
	}

	s.ctx, s.span = s.tracer.Start(o.ctx, observability.SpanStageRun, trace.WithAttributes(
		attribute.String(observability.AttrStageName, cfg.Name),
		attribute.String(observability.AttrStageRunID, o.runID),
		attribute.Bool(observability.AttrStageOrder, cfg.PreserveOrder),
		attribute.Int(observability.AttrStageCap, cfg.MaxConcurrency),
	))

	s.gate.onAcquire = func() { s.metrics.RecordAdmit(s.ctx, s.cfg.Name) }
	s.gate.onRelease = func() { s.metrics.RecordRelease(s.ctx, s.cfg.Name) }
	s.coord.onTransition = func(from, to Phase) {
		s.span.AddEvent("phase", trace.WithAttributes(attribute.String(observability.AttrStagePhase, to.String())))
		s.log.Debug("phase transition", logger.Fields(
			"from", from.String(),
			logger.FieldPhase, to.String(),
			logger.FieldInFlight, s.gate.inFlight,
		))
	}

	return s, nil
}

// Deliver offers one item. It returns false with a nil error when every
// slot is taken; the stage then calls Substrate.Redeliver once a slot frees
// up, and the substrate should deliver queued items until one is refused.
// After EndOfInput or a failure it returns a STAGE_CLOSED error.
func (s *Stage[In, Out]) Deliver(in In, meta Metadata) (bool, error) {
	if s.err != nil {
		return false, errors.StageClosed(s.cfg.Name).WithCause(s.err)
	}
	if !s.coord.accepting() {
		return false, errors.StageClosed(s.cfg.Name)
	}
	if !s.gate.tryAdmit() {
		s.waiting = true
		return false, nil
	}

	it := &item[Out]{seq: s.nextSeq, state: StatePending, admitted: time.Now()}
	s.nextSeq++
	s.admitted++

	c := &completion[Out]{
		segment: s.itemSegment(it.seq),
		onSettle: func(outputs []Out, err error) {
			s.exec.Submit(executor.Settle, func() { s.settle(it, outputs, err) })
		},
		onViolation: s.reportViolation,
	}
	it.state = StateRunning
	s.invoke(in, meta, c)
	return true, nil
}

// EndOfInput stops admission and starts draining.
func (s *Stage[In, Out]) EndOfInput() {
	if !s.coord.to(Draining) {
		return
	}
	s.waiting = false
	s.scheduleAdvance()
}

// Resume is called by the substrate when downstream is ready again. It
// forwards held outputs, continues the in-order drain from the cursor, and
// starts the flush hook if it was waiting on held finalize outputs.
func (s *Stage[In, Out]) Resume() {
	if s.err != nil {
		return
	}
	s.flushOutbox()
	if s.order != nil {
		s.drain()
	}
	if s.flushDeferred && len(s.outbox) == 0 {
		s.flushDeferred = false
		s.enterFlushing()
	}
	s.maybeComplete()
	s.scheduleAdvance()
}

// ID returns the run ID.
func (s *Stage[In, Out]) ID() string { return s.id }

// Name returns the configured name.
func (s *Stage[In, Out]) Name() string { return s.cfg.Name }

// Capacity returns the configured concurrency cap.
func (s *Stage[In, Out]) Capacity() int { return s.gate.capacity }

// Phase returns the current lifecycle phase.
func (s *Stage[In, Out]) Phase() Phase { return s.coord.phase }

// InFlight returns the number of occupied slots.
func (s *Stage[In, Out]) InFlight() int { return s.gate.inFlight }

// Buffered returns the number of settled items waiting for earlier ones.
func (s *Stage[In, Out]) Buffered() int {
	if s.order == nil {
		return 0
	}
	return s.order.len()
}

// Held returns the number of outputs waiting for downstream readiness.
func (s *Stage[In, Out]) Held() int { return len(s.outbox) }

// Started returns the number of items ever admitted.
func (s *Stage[In, Out]) Started() uint64 { return s.admitted }

// Released returns the number of items whose slot has been freed.
func (s *Stage[In, Out]) Released() uint64 { return s.released }

// Err returns the error that aborted the stage, if any.
func (s *Stage[In, Out]) Err() error { return s.err }

func (s *Stage[In, Out]) itemSegment(seq uint64) string {
	return fmt.Sprintf("%s/item-%d", s.cfg.Name, seq)
}

func (s *Stage[In, Out]) invoke(in In, meta Metadata, c *completion[Out]) {
	defer func() {
		if r := recover(); r != nil {
			c.abort(fmt.Errorf("transform panicked: %v", r))
		}
	}()
	s.fn(s.ctx, in, meta, c)
}

// settle applies an item's resolution.
func (s *Stage[In, Out]) settle(it *item[Out], outputs []Out, err error) {
	elapsed := time.Since(it.admitted)

	if s.err != nil {
		s.metrics.RecordSettle(s.ctx, s.cfg.Name, observability.StatusAbandoned, elapsed)
		s.releaseSlot(it)
		return
	}

	if err != nil {
		it.state = StateFailed
		s.metrics.RecordSettle(s.ctx, s.cfg.Name, observability.StatusFailed, elapsed)
		s.fail(errors.TaskFailure(s.itemSegment(it.seq), err).WithDetail(logger.FieldSequence, it.seq))
		s.releaseSlot(it)
		return
	}

	it.state = StateDone
	s.metrics.RecordSettle(s.ctx, s.cfg.Name, observability.StatusDone, elapsed)

	if s.order == nil {
		for _, out := range outputs {
			s.forward(out)
		}
		s.releaseSlot(it)
	} else {
		it.outputs = outputs
		s.order.complete(it)
		s.metrics.RecordBuffered(s.ctx, s.cfg.Name, 1)
		s.drain()
	}
	s.scheduleAdvance()
}

// drain releases settled items from the cursor while downstream is ready.
func (s *Stage[In, Out]) drain() {
	for s.ready() {
		it, ok := s.order.head()
		if !ok {
			return
		}
		s.order.advance()
		s.metrics.RecordBuffered(s.ctx, s.cfg.Name, -1)

		outputs := it.outputs
		it.outputs = nil
		for _, out := range outputs {
			s.forward(out)
		}
		s.releaseSlot(it)
	}
}

func (s *Stage[In, Out]) ready() bool {
	return len(s.outbox) == 0 && s.sub.Ready()
}

// forward pushes out, or holds it behind earlier held outputs.
func (s *Stage[In, Out]) forward(out Out) {
	if s.ready() {
		s.sub.Push(out)
		return
	}
	s.outbox = append(s.outbox, out)
}

func (s *Stage[In, Out]) flushOutbox() {
	var zero Out
	for len(s.outbox) > 0 && s.sub.Ready() {
		out := s.outbox[0]
		s.outbox[0] = zero
		s.outbox = s.outbox[1:]
		s.sub.Push(out)
	}
}

func (s *Stage[In, Out]) releaseSlot(it *item[Out]) {
	if it.released {
		return
	}
	it.released = true
	s.gate.release()
	s.released++

	if s.waiting && !s.redeliverQueued && s.err == nil && s.coord.accepting() {
		s.waiting = false
		s.redeliverQueued = true
		s.exec.Submit(executor.Settle, s.redeliver)
	}
}

func (s *Stage[In, Out]) redeliver() {
	s.redeliverQueued = false
	if s.err != nil || !s.coord.accepting() {
		return
	}
	s.sub.Redeliver()
}

func (s *Stage[In, Out]) scheduleAdvance() {
	if s.advanceQueued || s.err != nil || s.coord.phase != Draining {
		return
	}
	s.advanceQueued = true
	s.exec.Submit(executor.Advance, s.evaluate)
}

// evaluate checks the drain guard once pending settlements are applied.
// Item outputs still held for downstream count as unfinished work.
func (s *Stage[In, Out]) evaluate() {
	s.advanceQueued = false
	if s.err != nil || s.coord.phase != Draining || s.released != s.admitted || len(s.outbox) > 0 {
		return
	}
	if s.hooks.Finalize == nil {
		s.finish()
		s.enterFlushing()
		return
	}
	s.coord.to(Finalizing)
	s.runHook("finalize", observability.SpanStageFinalize, s.hooks.Finalize, func() {
		s.finish()
		if len(s.outbox) > 0 {
			// Flush starts from Resume once the finalize outputs are pushed.
			s.flushDeferred = true
			return
		}
		s.enterFlushing()
	})
}

func (s *Stage[In, Out]) enterFlushing() {
	s.coord.to(Flushing)
	if s.hooks.Flush == nil {
		s.enterComplete()
		return
	}
	s.runHook("flush", observability.SpanStageFlush, s.hooks.Flush, s.enterComplete)
}

func (s *Stage[In, Out]) enterComplete() {
	s.coord.to(Complete)
	s.maybeComplete()
}

// maybeComplete signals completion once Complete is reached and every held
// output has been pushed.
func (s *Stage[In, Out]) maybeComplete() {
	if s.completed || s.err != nil || s.coord.phase != Complete || len(s.outbox) > 0 {
		return
	}
	s.completed = true
	s.span.SetAttributes(attribute.Int64(observability.AttrItemCount, int64(s.admitted)))
	s.span.End()
	s.log.Debug("stage complete", logger.Fields("items", s.admitted))
	s.sub.Complete()
}

func (s *Stage[In, Out]) finish() {
	if s.finished {
		return
	}
	s.finished = true
	if f, ok := s.sub.(Finisher); ok {
		f.Finished()
	}
}

// runHook invokes a finalize or flush hook. Its outputs are forwarded as
// they are emitted and next runs in the same task that applies its
// resolution.
func (s *Stage[In, Out]) runHook(name, spanName string, hook Hook[Out], next func()) {
	start := time.Now()
	ctx, span := s.tracer.Start(s.ctx, spanName, trace.WithAttributes(
		attribute.String(observability.AttrStageName, s.cfg.Name),
	))
	emitted := 0

	c := &completion[Out]{
		segment: s.cfg.Name + "/" + name,
		onEmit: func(out Out) {
			s.exec.Submit(executor.Settle, func() {
				if s.err != nil {
					return
				}
				emitted++
				s.forward(out)
			})
		},
		onSettle: func(_ []Out, err error) {
			s.exec.Submit(executor.Settle, func() {
				elapsed := time.Since(start)
				span.SetAttributes(attribute.Int(observability.AttrHookOutputs, emitted))
				if err != nil {
					s.metrics.RecordHook(s.ctx, s.cfg.Name, name, observability.StatusFailed, elapsed)
					observability.SetSpanError(span, err)
					span.End()
					s.fail(errors.TaskFailure(s.cfg.Name+"/"+name, err))
					return
				}
				s.metrics.RecordHook(s.ctx, s.cfg.Name, name, observability.StatusDone, elapsed)
				span.End()
				if s.err != nil {
					return
				}
				s.log.Debug("hook resolved", logger.Fields(
					logger.FieldHook, name,
					logger.FieldDuration, elapsed.Milliseconds(),
				))
				next()
			})
		},
		onViolation: s.reportViolation,
	}

	s.log.Debug("running hook", logger.Fields(logger.FieldHook, name))
	func() {
		defer func() {
			if r := recover(); r != nil {
				c.abort(fmt.Errorf("%s hook panicked: %v", name, r))
			}
		}()
		hook(ctx, c)
	}()
}

func (s *Stage[In, Out]) reportViolation(err error) {
	s.exec.Submit(executor.Settle, func() { s.violation(err) })
}

func (s *Stage[In, Out]) violation(err error) {
	s.metrics.RecordViolation(s.ctx, s.cfg.Name)
	fields := logger.Fields(
		logger.FieldError, err.Error(),
		logger.FieldPhase, s.coord.phase.String(),
	)
	if s.coord.phase == Complete || s.err != nil {
		s.log.Warn("protocol violation after stage ended", fields)
		return
	}
	s.log.Warn("protocol violation", fields)
	s.fail(err)
}

// fail aborts the stage with the first error. Items still running are
// abandoned: their later resolutions only free their slots.
func (s *Stage[In, Out]) fail(err error) {
	if s.err != nil {
		return
	}
	s.err = err
	s.waiting = false

	s.log.Error("stage aborted", logger.Fields(
		logger.FieldError, err.Error(),
		logger.FieldPhase, s.coord.phase.String(),
		logger.FieldInFlight, s.gate.inFlight,
	))

	if s.order != nil {
		for _, it := range s.order.clear() {
			it.outputs = nil
			s.metrics.RecordBuffered(s.ctx, s.cfg.Name, -1)
			s.releaseSlot(it)
		}
	}
	s.outbox = nil

	observability.SetSpanError(s.span, err)
	s.span.End()
	s.sub.Fail(err)
}
