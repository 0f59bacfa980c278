package executor

// Phase selects the queue a task is submitted to.
type Phase int

const (
	// Settle is for applying the outcome of a task.
	Settle Phase = iota
	// Advance is for stage lifecycle transitions. Advance tasks only run
	// once no Settle task is pending.
	Advance
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case Settle:
		return "settle"
	case Advance:
		return "advance"
	default:
		return "unknown"
	}
}

// Executor runs submitted tasks one at a time.
type Executor interface {
	// Submit queues task in the given phase. It never blocks on the task
	// itself, although an idle Serial executor runs it before returning.
	Submit(phase Phase, task func())
}

// queue holds pending tasks, settle before advance, FIFO within a phase.
type queue struct {
	settle  []func()
	advance []func()
}

func (q *queue) push(phase Phase, task func()) {
	if phase == Advance {
		q.advance = append(q.advance, task)
		return
	}
	q.settle = append(q.settle, task)
}

func (q *queue) pop() (func(), bool) {
	if len(q.settle) > 0 {
		task := q.settle[0]
		q.settle[0] = nil
		q.settle = q.settle[1:]
		return task, true
	}
	if len(q.advance) > 0 {
		task := q.advance[0]
		q.advance[0] = nil
		q.advance = q.advance[1:]
		return task, true
	}
	return nil, false
}

func (q *queue) len() int {
	return len(q.settle) + len(q.advance)
}
