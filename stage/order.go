package stage

import "time"

// item is one admitted input.
type item[Out any] struct {
	seq      uint64
	state    State
	outputs  []Out
	admitted time.Time
	released bool
}

// orderBuffer holds settled items until every earlier item has been
// released.
type orderBuffer[Out any] struct {
	cursor  uint64
	pending map[uint64]*item[Out]
}

func newOrderBuffer[Out any]() *orderBuffer[Out] {
	return &orderBuffer[Out]{pending: make(map[uint64]*item[Out])}
}

// complete stores a settled item. Items below the cursor were already
// released and are ignored.
func (b *orderBuffer[Out]) complete(it *item[Out]) {
	if it.seq < b.cursor {
		return
	}
	b.pending[it.seq] = it
}

// head returns the item at the cursor if it has settled.
func (b *orderBuffer[Out]) head() (*item[Out], bool) {
	it, ok := b.pending[b.cursor]
	if !ok || it.state != StateDone {
		return nil, false
	}
	return it, true
}

// advance removes the head and moves the cursor past it.
func (b *orderBuffer[Out]) advance() {
	delete(b.pending, b.cursor)
	b.cursor++
}

func (b *orderBuffer[Out]) len() int {
	return len(b.pending)
}

// clear empties the buffer and returns what it held.
func (b *orderBuffer[Out]) clear() []*item[Out] {
	items := make([]*item[Out], 0, len(b.pending))
	for seq, it := range b.pending {
		items = append(items, it)
		delete(b.pending, seq)
	}
	return items
}
