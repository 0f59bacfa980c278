package stage

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/stagekit/errors"
)

// Completion is handed to a transform or hook. Emit may be called any number
// of times before the single terminal call, Done or Return. A second terminal
// call, or an Emit after it, returns a PROTOCOL_VIOLATION error and aborts
// the stage. Calls from one goroutine take effect in call order.
type Completion[Out any] interface {
	// Emit produces an output without resolving.
	Emit(out Out) error
	// Done resolves, failing the task when err is non-nil.
	Done(err error) error
	// Return emits out and resolves successfully.
	Return(out Out) error
}

// completion guards a single resolution.
type completion[Out any] struct {
	mu       sync.Mutex
	segment  string
	resolved bool
	outputs  []Out

	// onEmit forwards an output at once. When nil, outputs are recorded and
	// handed to onSettle.
	onEmit      func(out Out)
	onSettle    func(outputs []Out, err error)
	onViolation func(err error)
}

func (c *completion[Out]) Emit(out Out) error {
	c.mu.Lock()
	if c.resolved {
		c.mu.Unlock()
		return c.violate("output emitted after completion")
	}
	if c.onEmit == nil {
		c.outputs = append(c.outputs, out)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	c.onEmit(out)
	return nil
}

func (c *completion[Out]) Done(err error) error {
	var zero Out
	return c.resolve(zero, false, err)
}

func (c *completion[Out]) Return(out Out) error {
	return c.resolve(out, true, nil)
}

func (c *completion[Out]) resolve(out Out, hasOut bool, err error) error {
	c.mu.Lock()
	if c.resolved {
		c.mu.Unlock()
		return c.violate("completion resolved more than once")
	}
	c.resolved = true
	outputs := c.outputs
	c.outputs = nil
	c.mu.Unlock()

	if hasOut {
		if c.onEmit != nil {
			c.onEmit(out)
		} else {
			outputs = append(outputs, out)
		}
	}
	c.onSettle(outputs, err)
	return nil
}

// abort resolves with err unless already resolved. Used when a transform
// panics.
func (c *completion[Out]) abort(err error) {
	c.mu.Lock()
	if c.resolved {
		c.mu.Unlock()
		return
	}
	c.resolved = true
	c.outputs = nil
	c.mu.Unlock()
	c.onSettle(nil, err)
}

func (c *completion[Out]) violate(reason string) error {
	err := errors.ProtocolViolation(c.segment, reason)
	if c.onViolation != nil {
		c.onViolation(err)
	}
	return err
}

// Func adapts a blocking function into a Transform. fn runs on its own
// goroutine and its result resolves the completion.
func Func[In, Out any](fn func(ctx context.Context, in In) (Out, error)) Transform[In, Out] {
	return func(ctx context.Context, in In, _ Metadata, c Completion[Out]) {
		go func() {
			var (
				out Out
				err error
			)
			func() {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("transform panicked: %v", r)
					}
				}()
				out, err = fn(ctx, in)
			}()
			if err != nil {
				_ = c.Done(err)
				return
			}
			_ = c.Return(out)
		}()
	}
}

// Collect adapts a function returning several outputs into a Transform.
// Outputs are emitted in slice order.
func Collect[In, Out any](fn func(ctx context.Context, in In) ([]Out, error)) Transform[In, Out] {
	return func(ctx context.Context, in In, _ Metadata, c Completion[Out]) {
		go func() {
			var (
				outs []Out
				err  error
			)
			func() {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("transform panicked: %v", r)
					}
				}()
				outs, err = fn(ctx, in)
			}()
			if err != nil {
				_ = c.Done(err)
				return
			}
			for _, out := range outs {
				_ = c.Emit(out)
			}
			_ = c.Done(nil)
		}()
	}
}
