package mobius

import (
	"context"
	"fmt"
	"sync"

	"github.com/zoobzio/capitan"
)

// Handler begins the work for one effect. It may emit any number of events
// through emitter, from any goroutine, and must finish with exactly one call
// to emitter.Done or emitter.Fail. ctx is cancelled when the router connection
// is disposed or the task finishes.
type Handler[F, E any] func(ctx context.Context, effect F, emitter Emitter[E])

// Emitter is a running task's way back into the loop. Emissions after Done,
// Fail, or disposal of the router connection are discarded.
type Emitter[E any] interface {
	// Emit delivers an event.
	Emit(event E)

	// Fail records err and finishes the task.
	Fail(err error)

	// Done finishes the task.
	Done()
}

// route is one (predicate, handler) pair.
type route[F, E any] struct {
	name    string
	match   func(F) bool
	handler Handler[F, E]
}

// Router dispatches effects to handlers. Routes are evaluated in registration
// order and the first one whose predicate accepts the effect handles it. An
// effect no route accepts is a configuration error, reported through the
// error handler.
//
// Every effect becomes one task running on the router's runner. Disposing a
// router connection cancels the context of every task it started and drops
// anything they emit afterwards.
//
// Routes and configuration must be set up before the router is connected.
type Router[F, E any] struct {
	routes   []route[F, E]
	runner   WorkRunner
	failures *failureRing
	onError  func(Failure)
}

// NewRouter returns a router without routes that runs each task on its own
// goroutine.
func NewRouter[F, E any]() *Router[F, E] {
	return &Router[F, E]{
		runner: NewGoRunner(),
	}
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// Runner sets where tasks run. Default: a goroutine per task. Use
// NewImmediateRunner() to run handlers inline, which makes tests deterministic.
func (r *Router[F, E]) Runner(runner WorkRunner) *Router[F, E] {
	r.runner = runner
	return r
}

// ErrorHistorySize sets the number of recent handler failures to retain.
// Use 0 (default) to retain none.
func (r *Router[F, E]) ErrorHistorySize(n int) *Router[F, E] {
	r.failures = newFailureRing(n)
	return r
}

// OnError sets a callback invoked with every handler failure. The router does
// not retry; retrying belongs to the handler (see RoutePipeline).
func (r *Router[F, E]) OnError(fn func(Failure)) *Router[F, E] {
	r.onError = fn
	return r
}

// ErrorHistory returns recent handler failures, oldest first.
// Returns nil if error history is not enabled (see ErrorHistorySize).
func (r *Router[F, E]) ErrorHistory() []Failure {
	return r.failures.all()
}

// ClearErrorHistory drops the retained failures.
func (r *Router[F, E]) ClearErrorHistory() {
	r.failures.clear()
}

// Route adds a route with a raw Handler: the handler drives emission itself
// and signals the end of its work through the Emitter.
func (r *Router[F, E]) Route(name string, match func(F) bool, handler Handler[F, E]) *Router[F, E] {
	r.routes = append(r.routes, route[F, E]{name: name, match: match, handler: handler})
	return r
}

// Routes returns the route names in evaluation order.
func (r *Router[F, E]) Routes() []string {
	names := make([]string, len(r.routes))
	for i, rt := range r.routes {
		names[i] = rt.name
	}
	return names
}

func (r *Router[F, E]) find(effect F) (route[F, E], bool) {
	for _, rt := range r.routes {
		if rt.match(effect) {
			return rt, true
		}
	}
	return route[F, E]{}, false
}

func (r *Router[F, E]) fail(ctx context.Context, f Failure) {
	r.failures.push(f)
	capitan.Emit(ctx, RouterEffectFailed,
		KeyRoute.Field(f.Route),
		KeyError.Field(f.Err.Error()),
	)
	if r.onError != nil {
		r.onError(f)
	}
}

// Connect implements Connectable. Each connection has its own cancellation
// scope; a router may be connected any number of times.
func (r *Router[F, E]) Connect(output Consumer[E]) Connection[F] {
	ctx, cancel := context.WithCancel(context.Background())
	return &routerConnection[F, E]{
		router: r,
		output: output,
		ctx:    ctx,
		cancel: cancel,
	}
}

// routerConnection is one connection of a Router to a loop.
type routerConnection[F, E any] struct {
	router *Router[F, E]
	output Consumer[E]
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	disposed bool
}

func (c *routerConnection[F, E]) Accept(effect F) {
	c.mu.RLock()
	disposed := c.disposed
	c.mu.RUnlock()
	if disposed {
		return
	}

	rt, ok := c.router.find(effect)
	if !ok {
		capitan.Emit(c.ctx, RouterEffectUnmatched, KeyEvent.Field(fmt.Sprint(effect)))
		_ = report(&Violation{
			Kind:    KindConfiguration,
			Op:      "route effect",
			Message: fmt.Sprintf("no route matched effect %v (%T)", effect, effect),
		})
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	t := &task[F, E]{conn: c, route: rt.name, ctx: ctx, cancel: cancel}
	if !c.router.runner.Post(func() { rt.handler(ctx, effect, t) }) {
		t.Done()
	}
}

// deliver forwards event unless the connection is disposed. Dispose waits for
// deliveries in progress, so nothing is delivered once it returns.
func (c *routerConnection[F, E]) deliver(route string, event E) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.disposed {
		capitan.Emit(context.Background(), RouterLateEventDiscarded, KeyRoute.Field(route))
		return
	}
	c.output(event)
}

// Dispose marks the connection disposed before cancelling, so a task woken by
// the cancellation can no longer deliver.
func (c *routerConnection[F, E]) Dispose() {
	c.mu.Lock()
	c.disposed = true
	c.mu.Unlock()
	c.cancel()
}

// task is the Emitter of one handler invocation.
type task[F, E any] struct {
	conn   *routerConnection[F, E]
	route  string
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	finished bool
}

func (t *task[F, E]) Emit(event E) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		capitan.Emit(context.Background(), RouterLateEventDiscarded, KeyRoute.Field(t.route))
		return
	}
	t.conn.deliver(t.route, event)
}

func (t *task[F, E]) Fail(err error) {
	if !t.finish() {
		return
	}
	// A failure after disposal is a cancelled task, not a handler fault.
	if t.conn.ctx.Err() != nil {
		return
	}
	t.conn.router.fail(t.conn.ctx, Failure{Route: t.route, Err: err})
}

func (t *task[F, E]) Done() {
	t.finish()
}

// finish marks the task finished and reports whether this call did it.
func (t *task[F, E]) finish() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return false
	}
	t.finished = true
	t.cancel()
	return true
}

// Is returns a predicate matching effects whose dynamic type is T. It is the
// usual way to route a closed set of effect types behind an interface.
func Is[F, T any]() func(F) bool {
	return func(effect F) bool {
		_, ok := any(effect).(T)
		return ok
	}
}

// Equals returns a predicate matching effects equal to value.
func Equals[F comparable](value F) func(F) bool {
	return func(effect F) bool {
		return effect == value
	}
}

// Any matches every effect. Register it last as a catch-all.
func Any[F any](F) bool {
	return true
}

var _ Connectable[int, int] = (*Router[int, int])(nil)
