// Package testing provides test utilities and helpers for mobius loops.
package testing

import (
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/mobius"
)

// WaitFor polls a condition until it returns true or timeout is reached.
// Returns true if the condition was met, false if timeout occurred.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// WaitForModel waits until the loop's model satisfies check or timeout occurs.
func WaitForModel[M, E, F any](t *testing.T, l *mobius.Loop[M, E, F], check func(M) bool, timeout time.Duration) bool {
	t.Helper()
	return WaitFor(t, timeout, func() bool {
		return check(l.Model())
	})
}

// RequireLifecycle fails the test immediately if the loop is not in the expected state.
func RequireLifecycle[M, E, F any](t *testing.T, l *mobius.Loop[M, E, F], expected mobius.Lifecycle) {
	t.Helper()
	if got := l.Lifecycle(); got != expected {
		t.Fatalf("expected lifecycle %s, got %s", expected, got)
	}
}

// Recorder is a Connectable that records every value it accepts and can emit
// values back through its latest connection. Use it as an observer or as an
// effect handler.
type Recorder[I, O any] struct {
	mu     sync.Mutex
	values []I
	output mobius.Consumer[O]
	open   bool
}

// NewRecorder returns an empty Recorder.
func NewRecorder[I, O any]() *Recorder[I, O] {
	return &Recorder[I, O]{}
}

// Connect implements mobius.Connectable.
func (r *Recorder[I, O]) Connect(output mobius.Consumer[O]) mobius.Connection[I] {
	r.mu.Lock()
	r.output = output
	r.open = true
	r.mu.Unlock()

	return mobius.NewConnection(func(v I) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.values = append(r.values, v)
	}, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.open = false
	})
}

// Emit sends v through the latest connection. It reports false when the
// recorder is not connected.
func (r *Recorder[I, O]) Emit(v O) bool {
	r.mu.Lock()
	out, open := r.output, r.open
	r.mu.Unlock()
	if !open {
		return false
	}
	out(v)
	return true
}

// Values returns a copy of the accepted values in order.
func (r *Recorder[I, O]) Values() []I {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]I, len(r.values))
	copy(out, r.values)
	return out
}

// Last returns the most recently accepted value.
func (r *Recorder[I, O]) Last() (I, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		var zero I
		return zero, false
	}
	return r.values[len(r.values)-1], true
}

// Connected reports whether the latest connection is still open.
func (r *Recorder[I, O]) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

// NewTestLoop creates a started loop whose effects go to the returned
// recorder. The loop is closed when the test ends.
func NewTestLoop[M, E, F any](t *testing.T, update mobius.Update[M, E, F], model M) (*mobius.Loop[M, E, F], *Recorder[F, E]) {
	t.Helper()
	effects := NewRecorder[F, E]()
	l := mobius.NewLoop[M, E, F](update, nil, effects, model)
	t.Cleanup(l.Close)
	if err := l.Start(); err != nil {
		t.Fatalf("starting loop: %v", err)
	}
	return l, effects
}
