package executor

import "sync"

// Manual queues tasks until the owner runs them. Submit is safe from any
// goroutine; RunPending and Step must be called from one goroutine at a time.
type Manual struct {
	mu sync.Mutex
	q  queue
}

// NewManual creates an empty Manual executor.
func NewManual() *Manual {
	return &Manual{}
}

// Submit queues task without running it.
func (m *Manual) Submit(phase Phase, task func()) {
	m.mu.Lock()
	m.q.push(phase, task)
	m.mu.Unlock()
}

// Step runs the next task, if any, and reports whether one ran.
func (m *Manual) Step() bool {
	m.mu.Lock()
	task, ok := m.q.pop()
	m.mu.Unlock()
	if !ok {
		return false
	}
	task()
	return true
}

// RunPending runs tasks until the queue is empty, including tasks submitted
// by the tasks it runs, and returns how many ran.
func (m *Manual) RunPending() int {
	n := 0
	for m.Step() {
		n++
	}
	return n
}

// Pending returns the number of queued tasks.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.q.len()
}
