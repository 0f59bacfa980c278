package stage

import "fmt"

// gate counts admission slots.
type gate struct {
	capacity int
	inFlight int

	onAcquire func()
	onRelease func()
}

func newGate(capacity int) *gate {
	return &gate{capacity: capacity}
}

// tryAdmit occupies a slot if one is free.
func (g *gate) tryAdmit() bool {
	if g.inFlight >= g.capacity {
		return false
	}
	g.inFlight++
	if g.onAcquire != nil {
		g.onAcquire()
	}
	return true
}

// release frees a slot. Releasing more than was admitted is a bug in the
// caller.
func (g *gate) release() {
	if g.inFlight == 0 {
		panic(fmt.Sprintf("stage: gate released with no slot in use (capacity %d)", g.capacity))
	}
	g.inFlight--
	if g.onRelease != nil {
		g.onRelease()
	}
}

func (g *gate) available() int {
	return g.capacity - g.inFlight
}
