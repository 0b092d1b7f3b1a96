package mobius

import (
	"sync"
	"testing"
)

// recorder is an observer or effect handler that records every value it
// accepts. emit sends an event back through the most recent connection.
type recorder[I, O any] struct {
	mu        sync.Mutex
	values    []I
	output    Consumer[O]
	connects  int
	disposals int
	onAccept  func(I, Consumer[O])
}

func newRecorder[I, O any]() *recorder[I, O] {
	return &recorder[I, O]{}
}

func (r *recorder[I, O]) Connect(output Consumer[O]) Connection[I] {
	r.mu.Lock()
	r.output = output
	r.connects++
	r.mu.Unlock()

	return NewConnection[I](func(v I) {
		r.mu.Lock()
		r.values = append(r.values, v)
		hook := r.onAccept
		r.mu.Unlock()
		if hook != nil {
			hook(v, output)
		}
	}, func() {
		r.mu.Lock()
		r.disposals++
		r.mu.Unlock()
	})
}

func (r *recorder[I, O]) emit(v O) {
	r.mu.Lock()
	out := r.output
	r.mu.Unlock()
	out(v)
}

func (r *recorder[I, O]) snapshot() []I {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]I, len(r.values))
	copy(out, r.values)
	return out
}

func (r *recorder[I, O]) counts() (connects, disposals int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connects, r.disposals
}

// appendUpdate is the transition of the string scenarios: it appends
// "-"+event to the model and asks for no effects.
func appendUpdate(model, event string) Next[string, string] {
	return NextModel[string, string](model + "-" + event)
}

// newStringLoop builds a loop over appendUpdate with an effect recorder.
func newStringLoop(t *testing.T, initiate Initiate[string, string]) (*Loop[string, string, string], *recorder[string, string]) {
	t.Helper()
	effects := newRecorder[string, string]()
	loop := NewLoop[string, string, string](appendUpdate, initiate, effects, "S")
	t.Cleanup(loop.Close)
	return loop, effects
}

// captureViolations installs an error handler that records violations for
// the duration of the test.
func captureViolations(t *testing.T) func() []*Violation {
	t.Helper()
	var (
		mu  sync.Mutex
		got []*Violation
	)
	prev := SetErrorHandler(func(v *Violation) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, v)
	})
	t.Cleanup(func() { SetErrorHandler(prev) })
	return func() []*Violation {
		mu.Lock()
		defer mu.Unlock()
		out := make([]*Violation, len(got))
		copy(out, got)
		return out
	}
}
