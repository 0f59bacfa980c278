package stage

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/stagekit/errors"
)

func TestGate(t *testing.T) {
	g := newGate(2)
	acquired, released := 0, 0
	g.onAcquire = func() { acquired++ }
	g.onRelease = func() { released++ }

	assert.True(t, g.tryAdmit())
	assert.True(t, g.tryAdmit())
	assert.False(t, g.tryAdmit())
	assert.Equal(t, 0, g.available())

	g.release()
	assert.Equal(t, 1, g.available())
	assert.True(t, g.tryAdmit())

	assert.Equal(t, 3, acquired)
	assert.Equal(t, 1, released)
}

func TestGate_ReleaseUnderflowPanics(t *testing.T) {
	g := newGate(1)
	assert.Panics(t, func() { g.release() })
}

func TestOrderBuffer(t *testing.T) {
	b := newOrderBuffer[string]()
	it := func(seq uint64) *item[string] {
		return &item[string]{seq: seq, state: StateDone}
	}

	b.complete(it(1))
	_, ok := b.head()
	assert.False(t, ok, "head must wait for sequence 0")

	b.complete(it(0))
	head, ok := b.head()
	require.True(t, ok)
	assert.Equal(t, uint64(0), head.seq)
	b.advance()

	head, ok = b.head()
	require.True(t, ok)
	assert.Equal(t, uint64(1), head.seq)
	b.advance()
	assert.Equal(t, 0, b.len())

	b.complete(it(0))
	assert.Equal(t, 0, b.len(), "items below the cursor are ignored")

	b.complete(it(3))
	b.complete(it(4))
	assert.Len(t, b.clear(), 2)
	assert.Equal(t, 0, b.len())
}

func TestCoordinator_Monotonic(t *testing.T) {
	var seen []Phase
	c := coordinator{onTransition: func(_, to Phase) { seen = append(seen, to) }}

	assert.True(t, c.to(Draining))
	assert.False(t, c.to(Draining))
	assert.False(t, c.to(Active))
	assert.True(t, c.to(Flushing))
	assert.False(t, c.to(Finalizing))
	assert.True(t, c.to(Complete))

	assert.Equal(t, []Phase{Draining, Flushing, Complete}, seen)
	assert.False(t, c.accepting())
}

func TestPhaseAndStateStrings(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{Active.String(), "active"},
		{Draining.String(), "draining"},
		{Finalizing.String(), "finalizing"},
		{Flushing.String(), "flushing"},
		{Complete.String(), "complete"},
		{Phase(42).String(), "unknown"},
		{StatePending.String(), "pending"},
		{StateRunning.String(), "running"},
		{StateDone.String(), "done"},
		{StateFailed.String(), "failed"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.got)
	}
}

func TestMetadata_Get(t *testing.T) {
	var nilMeta Metadata
	assert.Equal(t, "", nilMeta.Get("encoding"))
	assert.Equal(t, "utf8", Metadata{"encoding": "utf8"}.Get("encoding"))
}

func TestConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"explicit", Config{Name: "digest", MaxConcurrency: 2, PreserveOrder: true}, false},
		{"negative", Config{MaxConcurrency: -3}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.ApplyDefaults()
			err := cfg.Validate()
			if tt.wantErr {
				assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig))
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, cfg.Name)
			assert.Positive(t, cfg.MaxConcurrency)
		})
	}

	cfg := Config{}
	cfg.ApplyDefaults()
	assert.Equal(t, "stage", cfg.Name)
	assert.Equal(t, DefaultMaxConcurrency, cfg.MaxConcurrency)
}

type settled struct {
	outputs []string
	err     error
}

func newTestCompletion(forward bool) (*completion[string], *[]string, *[]settled, *[]error) {
	var emitted []string
	var results []settled
	var violations []error
	c := &completion[string]{
		segment:     "test",
		onSettle:    func(outputs []string, err error) { results = append(results, settled{outputs, err}) },
		onViolation: func(err error) { violations = append(violations, err) },
	}
	if forward {
		c.onEmit = func(out string) { emitted = append(emitted, out) }
	}
	return c, &emitted, &results, &violations
}

func TestCompletion_RecordsOutputs(t *testing.T) {
	c, emitted, results, violations := newTestCompletion(false)

	require.NoError(t, c.Emit("a"))
	require.NoError(t, c.Emit("b"))
	require.NoError(t, c.Return("c"))

	assert.Empty(t, *emitted)
	require.Len(t, *results, 1)
	assert.Equal(t, []string{"a", "b", "c"}, (*results)[0].outputs)
	assert.NoError(t, (*results)[0].err)
	assert.Empty(t, *violations)
}

func TestCompletion_ForwardsOutputs(t *testing.T) {
	c, emitted, results, _ := newTestCompletion(true)

	require.NoError(t, c.Emit("a"))
	require.NoError(t, c.Return("b"))

	assert.Equal(t, []string{"a", "b"}, *emitted)
	require.Len(t, *results, 1)
	assert.Empty(t, (*results)[0].outputs)
}

func TestCompletion_Violations(t *testing.T) {
	c, _, results, violations := newTestCompletion(false)

	boom := stderrors.New("boom")
	require.NoError(t, c.Done(boom))

	err := c.Done(nil)
	assert.True(t, errors.IsProtocolViolation(err))
	err = c.Return("x")
	assert.True(t, errors.IsProtocolViolation(err))
	err = c.Emit("y")
	assert.True(t, errors.IsProtocolViolation(err))

	require.Len(t, *results, 1)
	assert.Equal(t, boom, (*results)[0].err)
	assert.Len(t, *violations, 3)

	appErr, ok := errors.AsAppError((*violations)[0])
	require.True(t, ok)
	assert.Equal(t, "test", appErr.Segment)
}

func TestCompletion_AbortAfterResolveIsIgnored(t *testing.T) {
	c, _, results, violations := newTestCompletion(false)
	require.NoError(t, c.Done(nil))
	c.abort(stderrors.New("late panic"))

	assert.Len(t, *results, 1)
	assert.Empty(t, *violations)
}

func TestCompletion_ConcurrentTerminalCalls(t *testing.T) {
	c, _, results, _ := newTestCompletion(false)
	var mu sync.Mutex
	c.onViolation = func(error) {}
	settle := c.onSettle
	c.onSettle = func(outputs []string, err error) {
		mu.Lock()
		defer mu.Unlock()
		settle(outputs, err)
	}

	var wg sync.WaitGroup
	var okCount int32
	var countMu sync.Mutex
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Done(nil) == nil {
				countMu.Lock()
				okCount++
				countMu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), okCount)
	assert.Len(t, *results, 1)
}

func TestFunc(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(context.Context, int) (int, error)
		wantOut []string
		wantErr bool
	}{
		{"value", func(_ context.Context, n int) (int, error) { return n + 1, nil }, []string{"2"}, false},
		{"error", func(context.Context, int) (int, error) { return 0, stderrors.New("no") }, nil, true},
		{"panic", func(context.Context, int) (int, error) { panic("bad") }, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan settled, 1)
			c := &completion[int]{
				onSettle: func(outputs []int, err error) {
					s := settled{err: err}
					for _, o := range outputs {
						s.outputs = append(s.outputs, string(rune('0'+o)))
					}
					done <- s
				},
			}
			Func(tt.fn)(context.Background(), 1, nil, c)

			select {
			case got := <-done:
				assert.Equal(t, tt.wantOut, got.outputs)
				assert.Equal(t, tt.wantErr, got.err != nil)
			case <-time.After(time.Second):
				t.Fatal("completion was not resolved")
			}
		})
	}
}

func TestCollect(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(context.Context, string) ([]string, error)
		wantOut []string
		wantErr string
	}{
		{"values", func(_ context.Context, s string) ([]string, error) { return []string{s + "1", s + "2"}, nil }, []string{"x1", "x2"}, ""},
		{"empty", func(context.Context, string) ([]string, error) { return nil, nil }, nil, ""},
		{"error", func(context.Context, string) ([]string, error) { return nil, stderrors.New("no") }, nil, "no"},
		{"panic", func(context.Context, string) ([]string, error) { panic("bad") }, nil, "transform panicked: bad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan settled, 1)
			c := &completion[string]{
				onSettle: func(outputs []string, err error) { done <- settled{outputs: outputs, err: err} },
			}
			Collect(tt.fn)(context.Background(), "x", nil, c)

			select {
			case got := <-done:
				assert.Equal(t, tt.wantOut, got.outputs)
				if tt.wantErr == "" {
					assert.NoError(t, got.err)
				} else {
					assert.EqualError(t, got.err, tt.wantErr)
				}
			case <-time.After(time.Second):
				t.Fatal("completion was not resolved")
			}
		})
	}
}
