package pipeline

import (
	"context"
	"sync"

	"github.com/kbukum/stagekit/stage"
	"github.com/kbukum/stagekit/stream"
)

// Through runs every value of p through fn on a stage. The first error from
// p, the stage or its hooks ends the pipeline. Hook outputs follow the item
// outputs.
func Through[I, O any](
	p *Pipeline[I],
	stageCfg stage.Config,
	streamCfg stream.Config,
	fn stage.Transform[I, O],
	hooks stage.Hooks[O],
	opts ...stream.Option,
) *Pipeline[O] {
	return FromFunc(func(ctx context.Context) Iterator[O] {
		source := p.create(ctx)
		runCtx, cancel := context.WithCancel(ctx)

		s, err := stream.New(runCtx, stageCfg, streamCfg, fn, hooks, opts...)
		if err != nil {
			cancel()
			return &errIter[O]{err: err, closer: source.Close}
		}

		it := &throughIter[I, O]{
			s:       s,
			source:  source,
			cancel:  cancel,
			fedDone: make(chan struct{}),
		}
		go it.feed(runCtx)
		return it
	})
}

type throughIter[I, O any] struct {
	s      *stream.Stream[I, O]
	source Iterator[I]
	cancel context.CancelFunc

	mu      sync.Mutex
	feedErr error
	fedDone chan struct{}
}

// feed pulls from the source and writes into the stream until the source
// is exhausted or the stream stops accepting input. The source is closed
// here, on the goroutine that reads it.
func (it *throughIter[I, O]) feed(ctx context.Context) {
	defer close(it.fedDone)
	defer func() { _ = it.source.Close() }()
	defer it.s.End()
	for {
		v, ok, err := it.source.Next(ctx)
		if err != nil {
			it.mu.Lock()
			it.feedErr = err
			it.mu.Unlock()
			it.cancel()
			return
		}
		if !ok {
			return
		}
		if err := it.s.Write(ctx, v); err != nil {
			return
		}
	}
}

func (it *throughIter[I, O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	select {
	case v, open := <-it.s.Out():
		if open {
			return v, true, nil
		}
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}

	it.mu.Lock()
	feedErr := it.feedErr
	it.mu.Unlock()
	if feedErr != nil {
		return zero, false, feedErr
	}
	return zero, false, it.s.Err()
}

// Close stops the feeder and the stream. The source is closed once the
// feeder returns from its current pull.
func (it *throughIter[I, O]) Close() error {
	it.cancel()
	return nil
}
