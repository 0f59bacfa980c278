package executor

import "sync"

// Serial is a trampolining executor. The first goroutine to submit while it
// is idle becomes the drainer and runs queued tasks until none remain;
// submissions from other goroutines, or from tasks themselves, are queued
// for that drainer.
type Serial struct {
	mu      sync.Mutex
	q       queue
	running bool
}

// NewSerial creates an idle Serial executor.
func NewSerial() *Serial {
	return &Serial{}
}

// Submit queues task and drains the queue inline if no other goroutine is
// already draining it.
func (s *Serial) Submit(phase Phase, task func()) {
	s.mu.Lock()
	s.q.push(phase, task)
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()
	s.drain()
}

// Pending returns the number of queued tasks.
func (s *Serial) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.len()
}

func (s *Serial) drain() {
	defer func() {
		if r := recover(); r != nil {
			// Hand the executor back so later submissions are not stranded.
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			panic(r)
		}
	}()
	for {
		s.mu.Lock()
		task, ok := s.q.pop()
		if !ok {
			s.running = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		task()
	}
}
