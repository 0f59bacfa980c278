package stream

import (
	"context"
	"sync"

	"github.com/kbukum/stagekit/errors"
	"github.com/kbukum/stagekit/executor"
	"github.com/kbukum/stagekit/logger"
	"github.com/kbukum/stagekit/stage"
)

// Option customizes a Stream.
type Option func(*options)

type options struct {
	exec      executor.Executor
	log       *logger.Logger
	stageOpts []stage.Option
}

// WithExecutor runs the stage on exec instead of a new executor.Serial.
func WithExecutor(exec executor.Executor) Option {
	return func(o *options) { o.exec = exec }
}

// WithLogger sets the logger used by the stream and its stage.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithStageOptions passes options through to stage.New.
func WithStageOptions(opts ...stage.Option) Option {
	return func(o *options) { o.stageOpts = append(o.stageOpts, opts...) }
}

type entry[In any] struct {
	v    In
	meta stage.Metadata
}

// Stream feeds written items through a stage and exposes its output as a
// channel.
type Stream[In, Out any] struct {
	ctx  context.Context
	name string
	exec executor.Executor
	st   *stage.Stage[In, Out]
	log  *logger.Logger

	// executor-owned
	queue []entry[In]
	ended bool

	// slots bounds items written but not yet admitted.
	slots chan struct{}

	// inMu orders accepted writes before End on the executor.
	inMu   sync.Mutex
	closed bool

	mu        sync.Mutex
	pending   []Out
	highWater int
	completed bool
	err       error
	wake      chan struct{}

	out          chan Out
	finished     chan struct{}
	finishedOnce sync.Once
	done         chan struct{}
}

// New creates a stream and starts its output goroutine. Cancelling ctx
// aborts the stream and is passed to every transform and hook.
func New[In, Out any](
	ctx context.Context,
	stageCfg stage.Config,
	cfg Config,
	fn stage.Transform[In, Out],
	hooks stage.Hooks[Out],
	opts ...Option,
) (*Stream[In, Out], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stageCfg.ApplyDefaults()

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.exec == nil {
		o.exec = executor.NewSerial()
	}
	if o.log == nil {
		o.log = logger.WithComponent("stream")
	}

	s := &Stream[In, Out]{
		ctx:       ctx,
		name:      stageCfg.Name,
		exec:      o.exec,
		log:       o.log.WithFields(logger.Fields(logger.FieldStage, stageCfg.Name)),
		slots:     make(chan struct{}, cfg.InputBuffer),
		highWater: cfg.OutputBuffer,
		wake:      make(chan struct{}, 1),
		out:       make(chan Out),
		finished:  make(chan struct{}),
		done:      make(chan struct{}),
	}

	stageOpts := append([]stage.Option{
		stage.WithContext(ctx),
		stage.WithLogger(o.log),
	}, o.stageOpts...)
	st, err := stage.New(stageCfg, fn, hooks, s.exec, &substrate[In, Out]{s: s}, stageOpts...)
	if err != nil {
		return nil, err
	}
	s.st = st

	go s.run()
	return s, nil
}

// Write queues v for the stage. It blocks while the input buffer is full and
// returns a CANCELED error if ctx ends first. Writing after End, or after
// the stream failed, returns a STAGE_CLOSED error. Transforms and hooks must
// not call Write or End on their own stream.
func (s *Stream[In, Out]) Write(ctx context.Context, v In) error {
	return s.WriteMeta(ctx, v, nil)
}

// WriteMeta is Write with item metadata.
func (s *Stream[In, Out]) WriteMeta(ctx context.Context, v In, meta stage.Metadata) error {
	if s.isClosed() {
		return errors.StageClosed(s.name)
	}
	if err := s.Err(); err != nil {
		return errors.StageClosed(s.name).WithCause(err)
	}
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return errors.Canceled("write", ctx.Err())
	case <-s.done:
		if err := s.Err(); err != nil {
			return errors.StageClosed(s.name).WithCause(err)
		}
		return errors.StageClosed(s.name)
	}

	s.inMu.Lock()
	defer s.inMu.Unlock()
	if s.closed {
		<-s.slots
		return errors.StageClosed(s.name)
	}
	s.exec.Submit(executor.Settle, func() {
		s.queue = append(s.queue, entry[In]{v: v, meta: meta})
		s.feed()
	})
	return nil
}

// End signals that nothing more will be written. Items already written are
// still processed.
func (s *Stream[In, Out]) End() {
	s.inMu.Lock()
	defer s.inMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.exec.Submit(executor.Settle, func() {
		s.ended = true
		s.feed()
	})
}

func (s *Stream[In, Out]) isClosed() bool {
	s.inMu.Lock()
	defer s.inMu.Unlock()
	return s.closed
}

// Out yields the stage outputs. It is closed when the stream completes or
// fails.
func (s *Stream[In, Out]) Out() <-chan Out { return s.out }

// Finished is closed once every item has been processed and the finalize
// hook, if any, has resolved.
func (s *Stream[In, Out]) Finished() <-chan struct{} { return s.finished }

// Done is closed after Out is closed.
func (s *Stream[In, Out]) Done() <-chan struct{} { return s.done }

// Err returns the error that ended the stream, if any.
func (s *Stream[In, Out]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Wait blocks until the stream is done and returns Err.
func (s *Stream[In, Out]) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return errors.Canceled("wait", ctx.Err())
	}
}

// feed delivers queued items until the stage refuses one. Runs on the
// executor.
func (s *Stream[In, Out]) feed() {
	var zero entry[In]
	for len(s.queue) > 0 {
		e := s.queue[0]
		ok, err := s.st.Deliver(e.v, e.meta)
		if err != nil {
			s.log.Debug("dropping queued input", logger.Fields(
				logger.FieldError, err.Error(),
				"dropped", len(s.queue),
			))
			s.dropQueue()
			return
		}
		if !ok {
			return
		}
		s.queue[0] = zero
		s.queue = s.queue[1:]
		<-s.slots
	}
	if s.ended {
		s.st.EndOfInput()
	}
}

func (s *Stream[In, Out]) dropQueue() {
	for range s.queue {
		<-s.slots
	}
	s.queue = nil
}

func (s *Stream[In, Out]) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// abort records err as the stream error unless one is already set.
func (s *Stream[In, Out]) abort(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.signal()
}

// run hands pending outputs to the consumer.
func (s *Stream[In, Out]) run() {
	defer close(s.done)
	defer close(s.out)

	var zero Out
	for {
		s.mu.Lock()
		if s.err != nil {
			s.pending = nil
			s.mu.Unlock()
			return
		}
		if len(s.pending) > 0 {
			v := s.pending[0]
			s.pending[0] = zero
			s.pending = s.pending[1:]
			resume := len(s.pending) == s.highWater-1
			s.mu.Unlock()

			if resume {
				s.exec.Submit(executor.Settle, s.st.Resume)
			}
			select {
			case s.out <- v:
			case <-s.ctx.Done():
				s.abort(errors.Canceled("stream", s.ctx.Err()))
				return
			}
			continue
		}
		if s.completed {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		select {
		case <-s.wake:
		case <-s.ctx.Done():
			s.abort(errors.Canceled("stream", s.ctx.Err()))
			return
		}
	}
}

// substrate is the stage's view of a Stream. All methods run on the
// executor.
type substrate[In, Out any] struct {
	s *Stream[In, Out]
}

func (b *substrate[In, Out]) Ready() bool {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	return len(b.s.pending) < b.s.highWater
}

func (b *substrate[In, Out]) Push(out Out) {
	b.s.mu.Lock()
	b.s.pending = append(b.s.pending, out)
	b.s.mu.Unlock()
	b.s.signal()
}

func (b *substrate[In, Out]) Redeliver() {
	b.s.feed()
}

func (b *substrate[In, Out]) Complete() {
	b.s.mu.Lock()
	b.s.completed = true
	b.s.mu.Unlock()
	b.s.signal()
}

func (b *substrate[In, Out]) Fail(err error) {
	b.s.dropQueue()
	b.s.abort(err)
}

func (b *substrate[In, Out]) Finished() {
	b.s.finishedOnce.Do(func() { close(b.s.finished) })
}
