package stage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kbukum/stagekit/executor"
	"github.com/kbukum/stagekit/logger"
)

// fakeSubstrate records everything the stage does to it. limit, when
// positive, makes Ready false once that many outputs have been pushed.
type fakeSubstrate struct {
	ready       bool
	limit       int
	pushed      []string
	events      *[]string
	completed   int
	finished    int
	failures    []error
	onRedeliver func()
}

func (f *fakeSubstrate) Ready() bool {
	if !f.ready {
		return false
	}
	return f.limit <= 0 || len(f.pushed) < f.limit
}

func (f *fakeSubstrate) Push(out string) {
	f.pushed = append(f.pushed, out)
	f.record("push:" + out)
}

func (f *fakeSubstrate) Redeliver() {
	if f.onRedeliver != nil {
		f.onRedeliver()
	}
}

func (f *fakeSubstrate) Complete() {
	f.completed++
	f.record("complete")
}

func (f *fakeSubstrate) Fail(err error) {
	f.failures = append(f.failures, err)
	f.record("fail")
}

func (f *fakeSubstrate) Finished() {
	f.finished++
	f.record("finished")
}

func (f *fakeSubstrate) record(e string) {
	if f.events != nil {
		*f.events = append(*f.events, e)
	}
}

// call is one transform invocation held open by the test.
type call struct {
	in string
	c  Completion[string]
}

// harness drives a Stage[string, string] on a Manual executor. Inputs that
// are refused wait in queue until the stage asks for redelivery. Once end is
// called, end of input is signalled as soon as the queue is empty.
type harness struct {
	t      *testing.T
	exec   *executor.Manual
	sub    *fakeSubstrate
	st     *Stage[string, string]
	queue  []string
	ended  bool
	calls  []call
	events []string
}

func newHarness(t *testing.T, cfg Config, hooks Hooks[string]) *harness {
	t.Helper()
	h := &harness{t: t, exec: executor.NewManual()}
	h.sub = &fakeSubstrate{ready: true, events: &h.events}
	h.sub.onRedeliver = h.pump

	st, err := New[string, string](cfg, func(_ context.Context, in string, _ Metadata, c Completion[string]) {
		h.calls = append(h.calls, call{in: in, c: c})
		h.events = append(h.events, "start:"+in)
	}, hooks, h.exec, h.sub, WithLogger(logger.Nop()))
	require.NoError(t, err)
	h.st = st
	return h
}

func (h *harness) offer(items ...string) {
	h.queue = append(h.queue, items...)
	h.pump()
}

func (h *harness) offerN(n int) {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf("i%d", i)
	}
	h.offer(items...)
}

func (h *harness) pump() {
	for len(h.queue) > 0 {
		ok, err := h.st.Deliver(h.queue[0], nil)
		require.NoError(h.t, err)
		if !ok {
			return
		}
		h.queue = h.queue[1:]
	}
	if h.ended {
		h.st.EndOfInput()
	}
}

func (h *harness) end() {
	h.ended = true
	h.pump()
}

// finish resolves call i with "out-" plus its input.
func (h *harness) finish(i int) {
	require.NoError(h.t, h.calls[i].c.Return("out-"+h.calls[i].in))
}

func (h *harness) run() {
	h.exec.RunPending()
}
