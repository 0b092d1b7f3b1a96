package mobius

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// Loop runs a unidirectional state machine. Events from any goroutine are
// serialized onto a single runner where Update is applied; new models are fanned
// out to observers, each on its own runner, and effects are handed to the
// effect handler, whose events come back in through Dispatch.
//
// All model and registry mutation happens on the loop's serial runner, so
// Update can be a plain, non-reentrant function.
//
// Start, Stop, Connect, the disposers returned by Connect, ReplaceModel and
// Model block until their work has run on the serial runner. They must not be
// called from the serial runner itself, which includes Update, Initiate,
// loggers, and observers or effect handlers that run on an ImmediateRunner.
// Dispatch never blocks.
type Loop[M, E, F any] struct {
	update   Update[M, E, F]
	initiate Initiate[M, F]
	effects  Connectable[F, E]
	source   EventSource[E]
	logger   Logger[M, E, F]
	metrics  MetricsProvider
	clock    clockz.Clock
	name     string

	runner    *SerialRunner
	lifecycle atomic.Int32
	closed    atomic.Bool

	// Owned by the serial runner.
	model      M
	observers  *registry[M, E]
	effectConn *guardedConnection[F, E]
	sourceSink *guardedSink[E]
	sourceSub  Disposable
}

// NewLoop creates a stopped loop holding model.
//
// A nil initiate starts from the held model without effects. A nil effects
// handler discards every effect.
//
// Example:
//
//	loop := mobius.NewLoop[int, string, string](
//	    func(model int, event string) mobius.Next[int, string] {
//	        if event == "inc" {
//	            return mobius.NextModel[int, string](model + 1)
//	        }
//	        return mobius.NoChange[int, string]()
//	    },
//	    nil,
//	    router,
//	    0,
//	).Logger(mobius.NewSlogLogger[int, string, string]("counter", nil))
func NewLoop[M, E, F any](
	update Update[M, E, F],
	initiate Initiate[M, F],
	effects Connectable[F, E],
	model M,
) *Loop[M, E, F] {
	if initiate == nil {
		initiate = NoInit[M, F]
	}
	if effects == nil {
		effects = discardEffects[F, E]()
	}

	l := &Loop[M, E, F]{
		update:    update,
		initiate:  initiate,
		effects:   effects,
		logger:    NoOpLogger[M, E, F]{},
		metrics:   NoOpMetricsProvider{},
		clock:     clockz.RealClock,
		runner:    NewSerialRunner(),
		model:     model,
		observers: newRegistry[M, E](),
	}
	l.lifecycle.Store(int32(LifecycleStopped))

	return l
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// EventSource sets the source subscribed on every Start. Must be called before Start().
func (l *Loop[M, E, F]) EventSource(source EventSource[E]) *Loop[M, E, F] {
	l.source = source
	return l
}

// Logger sets the logger invoked around Initiate and Update.
// Use Loggers to install several. Must be called before Start().
func (l *Loop[M, E, F]) Logger(logger Logger[M, E, F]) *Loop[M, E, F] {
	if logger == nil {
		logger = NoOpLogger[M, E, F]{}
	}
	l.logger = logger
	return l
}

// Metrics sets a metrics provider for observability integration.
// Must be called before Start().
func (l *Loop[M, E, F]) Metrics(provider MetricsProvider) *Loop[M, E, F] {
	if provider == nil {
		provider = NoOpMetricsProvider{}
	}
	l.metrics = provider
	return l
}

// Clock sets the clock used to time event processing.
// Use this with clockz.FakeClock for deterministic tests. Must be called before Start().
func (l *Loop[M, E, F]) Clock(clock clockz.Clock) *Loop[M, E, F] {
	l.clock = clock
	return l
}

// Name labels the loop's signals. Must be called before Start().
func (l *Loop[M, E, F]) Name(name string) *Loop[M, E, F] {
	l.name = name
	return l
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Lifecycle returns the current lifecycle state.
func (l *Loop[M, E, F]) Lifecycle() Lifecycle {
	return Lifecycle(l.lifecycle.Load())
}

// IsRunning reports whether the loop is started.
func (l *Loop[M, E, F]) IsRunning() bool {
	return l.Lifecycle() == LifecycleStarted
}

// Start runs Initiate on the held model, replays the resulting model to every
// registered observer, connects the effect handler, subscribes the event
// source and dispatches the initial effects.
//
// Starting a loop that is not stopped is a lifecycle violation: it is reported
// through the error handler, returned, and leaves the loop untouched.
func (l *Loop[M, E, F]) Start() error {
	return l.startAt(captureCallSite())
}

func (l *Loop[M, E, F]) startAt(site callSite) error {
	var v *Violation
	if err := l.run(func() { v = l.start(site) }); err != nil {
		return err
	}
	if v != nil {
		return report(v)
	}
	return nil
}

// Stop disconnects every observer, the effect handler and the event source.
// Observers stay registered and are reconnected by the next Start. The model
// is retained.
func (l *Loop[M, E, F]) Stop() error {
	return l.stopAt(captureCallSite())
}

func (l *Loop[M, E, F]) stopAt(site callSite) error {
	var v *Violation
	if err := l.run(func() { v = l.stop(site) }); err != nil {
		return err
	}
	if v != nil {
		return report(v)
	}
	return nil
}

// Close stops the loop if it is running and releases its serial runner.
// The last model stays readable through Model; every other blocking call
// returns ErrClosed and dispatched events are dropped.
func (l *Loop[M, E, F]) Close() {
	if !l.closed.CompareAndSwap(false, true) {
		return
	}
	_ = l.run(func() { //nolint:errcheck // the runner is still open here
		if l.Lifecycle() == LifecycleStarted {
			_ = l.stop(callSite{})
		}
		for _, o := range l.observers.snapshot() {
			l.disconnect(o.key)
		}
	})
	l.runner.Dispose()
	<-l.runner.Done()
}

func (l *Loop[M, E, F]) start(site callSite) *Violation {
	if cur := l.Lifecycle(); cur != LifecycleStopped {
		return site.violation(KindLifecycle, "start", fmt.Sprintf("cannot start a loop that is %s", cur))
	}
	l.setLifecycle(LifecycleStarting)

	l.logger.BeforeInit(l.model)
	first := l.initiate(l.model)
	l.logger.AfterInit(l.model, first)
	l.model = first.Model

	for _, o := range l.observers.snapshot() {
		o.wire(l.model, l.Dispatch)
	}

	l.effectConn = guardConnect(l.effects, l.Dispatch)

	if l.source != nil {
		l.sourceSink = &guardedSink[E]{sink: l.Dispatch}
		l.sourceSub = l.source.Subscribe(l.sourceSink.accept)
	}

	for _, effect := range first.Effects {
		l.dispatchEffect(effect)
	}

	l.setLifecycle(LifecycleStarted)
	capitan.Emit(context.Background(), LoopStarted, KeyLoop.Field(l.name))
	return nil
}

func (l *Loop[M, E, F]) stop(site callSite) *Violation {
	if cur := l.Lifecycle(); cur != LifecycleStarted {
		return site.violation(KindLifecycle, "stop", fmt.Sprintf("cannot stop a loop that is %s", cur))
	}
	l.setLifecycle(LifecycleStopping)

	for _, o := range l.observers.snapshot() {
		o.unwire()
	}

	l.effectConn.Dispose()
	l.effectConn = nil

	if l.sourceSub != nil {
		l.sourceSink.Dispose()
		l.sourceSub.Dispose()
		l.sourceSink = nil
		l.sourceSub = nil
	}

	l.setLifecycle(LifecycleStopped)
	capitan.Emit(context.Background(), LoopStopped, KeyLoop.Field(l.name))
	return nil
}

// setLifecycle must only be called on the serial runner.
func (l *Loop[M, E, F]) setLifecycle(to Lifecycle) {
	from := Lifecycle(l.lifecycle.Swap(int32(to)))
	l.metrics.OnLifecycleChange(from, to)
	capitan.Emit(context.Background(), LoopStateChanged,
		KeyLoop.Field(l.name),
		KeyOldState.Field(from.String()),
		KeyNewState.Field(to.String()),
	)
}

// -----------------------------------------------------------------------------
// Events and effects
// -----------------------------------------------------------------------------

// Dispatch queues event for processing and returns immediately. Events are
// processed one at a time in the order they were queued; an event processed
// while the loop is not started is dropped without error.
func (l *Loop[M, E, F]) Dispatch(event E) {
	l.runner.Post(func() {
		l.process(event)
	})
}

func (l *Loop[M, E, F]) process(event E) {
	if l.Lifecycle() != LifecycleStarted {
		l.metrics.OnEventDropped()
		capitan.Emit(context.Background(), LoopEventDropped,
			KeyLoop.Field(l.name),
			KeyEvent.Field(fmt.Sprint(event)),
		)
		return
	}

	start := l.clock.Now()

	l.logger.BeforeUpdate(l.model, event)
	next := l.update(l.model, event)
	l.logger.AfterUpdate(l.model, event, next)

	if model, ok := next.Model(); ok {
		l.model = model
		for _, o := range l.observers.snapshot() {
			o.deliver(model)
		}
	}

	// Events the handler emits synchronously are queued behind this one, so
	// every effect of this event is submitted before they are processed.
	for _, effect := range next.Effects() {
		l.dispatchEffect(effect)
	}

	l.metrics.OnEventProcessed(l.clock.Since(start), next.HasModel())
}

func (l *Loop[M, E, F]) dispatchEffect(effect F) {
	l.metrics.OnEffectDispatched()
	l.effectConn.Accept(effect)
}

// -----------------------------------------------------------------------------
// Observers and model access
// -----------------------------------------------------------------------------

// Connect registers an observer. Models are delivered on runner; events the
// observer emits are dispatched to the loop. If the loop is started, the
// current model is replayed to the observer before any later event is
// processed. A nil runner gives the observer a dedicated SerialRunner that is
// released when it disconnects.
//
// The returned Disposable unregisters the observer, tearing its connection
// down if the loop is running. It is idempotent and blocks like Stop.
func (l *Loop[M, E, F]) Connect(obs Connectable[M, E], runner WorkRunner) (Disposable, error) {
	o := &observer[M, E]{runner: runner, source: obs}
	if runner == nil {
		o.runner = NewSerialRunner()
		o.owned = true
	}

	var key uuid.UUID
	err := l.run(func() {
		key = l.observers.insert(o)
		if l.Lifecycle() == LifecycleStarted {
			o.wire(l.model, l.Dispatch)
		}
		capitan.Emit(context.Background(), LoopObserverConnected,
			KeyLoop.Field(l.name),
			KeyObserver.Field(key.String()),
		)
	})
	if err != nil {
		if o.owned {
			o.runner.Dispose()
		}
		return nil, err
	}

	var once sync.Once
	return DisposableFunc(func() {
		once.Do(func() {
			_ = l.run(func() { l.disconnect(key) }) //nolint:errcheck // Close already disconnected it
		})
	}), nil
}

// disconnect must only be called on the serial runner.
func (l *Loop[M, E, F]) disconnect(key uuid.UUID) {
	o, ok := l.observers.remove(key)
	if !ok {
		return
	}
	o.unwire()
	if o.owned {
		o.runner.Dispose()
	}
	capitan.Emit(context.Background(), LoopObserverDisconnected,
		KeyLoop.Field(l.name),
		KeyObserver.Field(key.String()),
	)
}

// ReplaceModel overwrites the held model without running Update. It is meant
// for seeding a stopped loop, for example when restoring saved state;
// replacing the model of a running loop is a lifecycle violation.
func (l *Loop[M, E, F]) ReplaceModel(model M) error {
	return l.replaceModelAt(captureCallSite(), model)
}

func (l *Loop[M, E, F]) replaceModelAt(site callSite, model M) error {
	var v *Violation
	err := l.run(func() {
		if cur := l.Lifecycle(); cur != LifecycleStopped {
			v = site.violation(KindLifecycle, "replace model", fmt.Sprintf("cannot replace the model of a loop that is %s", cur))
			return
		}
		l.model = model
	})
	if err != nil {
		return err
	}
	if v != nil {
		return report(v)
	}
	return nil
}

// Model returns the current model. It is safe to call from any goroutine
// other than the serial runner, in any lifecycle state, including after Close.
func (l *Loop[M, E, F]) Model() M {
	var model M
	if err := l.run(func() { model = l.model }); err != nil {
		// Closed: the runner has exited, so the field is no longer written.
		<-l.runner.Done()
		return l.model
	}
	return model
}

// run executes fn on the serial runner and waits for it.
func (l *Loop[M, E, F]) run(fn func()) error {
	done := make(chan struct{})
	if !l.runner.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrClosed
	}
	<-done
	return nil
}

// discardEffects is the effect handler of loops created without one.
func discardEffects[F, E any]() Connectable[F, E] {
	return ConnectableFunc[F, E](func(_ Consumer[E]) Connection[F] {
		return NewConnection[F](func(F) {}, nil)
	})
}
