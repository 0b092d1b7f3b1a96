package mobius

import (
	"sync"
	"sync/atomic"
)

// guardedConnection wraps a connection so that nothing crosses it once it is
// disposed: Accept becomes a no-op, and values the connected party emits are
// discarded. Dispose waits for emissions already in progress, so after it
// returns the connected party can no longer reach the output.
//
// Dispose does not wait for an Accept that is already running: observers run
// on their own runner and may call blocking loop APIs from there. No Accept
// starts once Dispose has returned.
type guardedConnection[I, O any] struct {
	conn     Connection[I]
	output   Consumer[O]
	disposed atomic.Bool

	outputMu sync.RWMutex
	once     sync.Once
}

// guardConnect connects c through a guard.
func guardConnect[I, O any](c Connectable[I, O], output Consumer[O]) *guardedConnection[I, O] {
	g := &guardedConnection[I, O]{output: output}
	g.conn = c.Connect(g.emit)
	return g
}

func (g *guardedConnection[I, O]) Accept(value I) {
	if g.disposed.Load() {
		return
	}
	g.conn.Accept(value)
}

func (g *guardedConnection[I, O]) emit(value O) {
	if g.disposed.Load() {
		return
	}
	g.outputMu.RLock()
	defer g.outputMu.RUnlock()
	if g.disposed.Load() {
		return
	}
	g.output(value)
}

func (g *guardedConnection[I, O]) Dispose() {
	g.once.Do(func() {
		g.disposed.Store(true)

		g.outputMu.Lock()
		g.outputMu.Unlock() //nolint:staticcheck // waits for in-flight emissions

		g.conn.Dispose()
	})
}

func (g *guardedConnection[I, O]) isDisposed() bool {
	return g.disposed.Load()
}

// guardedSink forwards to sink until disposed.
type guardedSink[T any] struct {
	sink     Consumer[T]
	disposed atomic.Bool
}

func (s *guardedSink[T]) accept(value T) {
	if s.disposed.Load() {
		return
	}
	s.sink(value)
}

func (s *guardedSink[T]) Dispose() {
	s.disposed.Store(true)
}
