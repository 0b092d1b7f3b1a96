package mobius

// Update is the pure transition function of a loop. It receives the current
// model and an event and returns the outcome of the transition. It is only
// ever invoked on the loop's serial runner, never concurrently with itself.
type Update[M, E, F any] func(model M, event E) Next[M, F]

// Initiate produces the first model and effects of a loop run. It is invoked
// exactly once per Start, before any observer is notified, and must not block.
type Initiate[M, F any] func(model M) First[M, F]

// Consumer accepts values of type T.
type Consumer[T any] func(T)

// Disposable is anything holding resources that can be released.
// Dispose must be idempotent.
type Disposable interface {
	Dispose()
}

// DisposableFunc adapts a plain function to Disposable.
type DisposableFunc func()

// Dispose calls f.
func (f DisposableFunc) Dispose() { f() }

// Connection is one end of a bidirectional channel between the loop and an
// observer or effect handler. Accept may be called repeatedly. Once Dispose
// returns, no further values may be emitted to the output the connection was
// created with.
type Connection[I any] interface {
	Accept(value I)
	Dispose()
}

// Connectable creates connections. The output consumer passed to Connect is
// the way the connected party talks back to the loop; it may be called from
// any goroutine.
type Connectable[I, O any] interface {
	Connect(output Consumer[O]) Connection[I]
}

// ConnectableFunc adapts a function to Connectable.
type ConnectableFunc[I, O any] func(output Consumer[O]) Connection[I]

// Connect calls f.
func (f ConnectableFunc[I, O]) Connect(output Consumer[O]) Connection[I] {
	return f(output)
}

// connectionFuncs is a Connection built from two functions.
type connectionFuncs[I any] struct {
	accept  func(I)
	dispose func()
}

func (c connectionFuncs[I]) Accept(value I) {
	if c.accept != nil {
		c.accept(value)
	}
}

func (c connectionFuncs[I]) Dispose() {
	if c.dispose != nil {
		c.dispose()
	}
}

// NewConnection builds a Connection from an accept function and an optional
// dispose function.
func NewConnection[I any](accept func(I), dispose func()) Connection[I] {
	return connectionFuncs[I]{accept: accept, dispose: dispose}
}

// EventSource produces events independently of any single transition. The sink
// may be invoked from any goroutine between Subscribe and the disposal of the
// returned handle.
type EventSource[E any] interface {
	Subscribe(sink Consumer[E]) Disposable
}

// EventSourceFunc adapts a function to EventSource.
type EventSourceFunc[E any] func(sink Consumer[E]) Disposable

// Subscribe calls f.
func (f EventSourceFunc[E]) Subscribe(sink Consumer[E]) Disposable {
	return f(sink)
}

// Next is the outcome of a transition: an optional new model plus an ordered
// list of effects. A Next without a model means the model did not change;
// observers are not notified in that case, but the effects are still dispatched.
type Next[M, F any] struct {
	model    M
	hasModel bool
	effects  []F
}

// NextModel returns a Next carrying a new model and effects.
func NextModel[M, F any](model M, effects ...F) Next[M, F] {
	return Next[M, F]{model: model, hasModel: true, effects: effects}
}

// Dispatch returns a Next that keeps the current model and dispatches effects.
func Dispatch[M, F any](effects ...F) Next[M, F] {
	return Next[M, F]{effects: effects}
}

// NoChange returns a Next that neither changes the model nor dispatches effects.
func NoChange[M, F any]() Next[M, F] {
	return Next[M, F]{}
}

// Model returns the new model and true, or the zero value and false when the
// transition did not change the model.
func (n Next[M, F]) Model() (M, bool) {
	return n.model, n.hasModel
}

// HasModel reports whether the transition produced a new model.
func (n Next[M, F]) HasModel() bool {
	return n.hasModel
}

// Effects returns the effects in the order they must be dispatched.
func (n Next[M, F]) Effects() []F {
	return n.effects
}

// HasEffects reports whether there is at least one effect.
func (n Next[M, F]) HasEffects() bool {
	return len(n.effects) > 0
}

// First is the outcome of Initiate: a mandatory model and ordered effects.
type First[M, F any] struct {
	Model   M
	Effects []F
}

// FirstModel returns a First with the given model and effects.
func FirstModel[M, F any](model M, effects ...F) First[M, F] {
	return First[M, F]{Model: model, Effects: effects}
}

// NoInit is an Initiate that starts from the given model without effects.
func NoInit[M, F any](model M) First[M, F] {
	return First[M, F]{Model: model}
}
