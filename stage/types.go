package stage

import "context"

// Metadata travels with an item from the substrate to its transform.
type Metadata map[string]string

// Get returns the value for key, or "" when absent.
func (m Metadata) Get(key string) string {
	if m == nil {
		return ""
	}
	return m[key]
}

// State is the lifecycle of a single item.
type State int

const (
	StatePending State = iota
	StateRunning
	StateDone
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Phase is the stage lifecycle. It only moves forward.
type Phase int

const (
	// Active accepts input.
	Active Phase = iota
	// Draining has seen end of input and waits for admitted items.
	Draining
	// Finalizing runs the finalize hook.
	Finalizing
	// Flushing runs the flush hook.
	Flushing
	// Complete is terminal.
	Complete
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case Active:
		return "active"
	case Draining:
		return "draining"
	case Finalizing:
		return "finalizing"
	case Flushing:
		return "flushing"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Transform processes one item and resolves c exactly once. It is called on
// the executor and should hand long work to a goroutine.
type Transform[In, Out any] func(ctx context.Context, in In, meta Metadata, c Completion[Out])

// Hook is a finalize or flush step. It follows the same completion contract
// as a Transform.
type Hook[Out any] func(ctx context.Context, c Completion[Out])

// Hooks holds the optional shutdown steps. A nil hook is skipped.
type Hooks[Out any] struct {
	// Finalize runs once after every admitted item has been released.
	Finalize Hook[Out]
	// Flush runs once after Finalize resolves.
	Flush Hook[Out]
}

// Substrate is the stage's view of the stream it sits in. Its methods are
// only called on the stage's executor.
type Substrate[Out any] interface {
	// Ready reports whether downstream can take more output now.
	Ready() bool
	// Push hands one output downstream.
	Push(out Out)
	// Redeliver asks for the next queued input after a rejected Deliver.
	Redeliver()
	// Complete signals that no further output will be pushed.
	Complete()
	// Fail escalates the error that aborted the stage.
	Fail(err error)
}

// Finisher is implemented by substrates that want to know when the input
// side is finished: the finalize hook resolved, or every item drained when
// there is no finalize hook.
type Finisher interface {
	Finished()
}
