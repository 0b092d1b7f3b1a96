/*
Package mobius runs unidirectional event loops: a pure transition function
turns the current model and an event into a new model plus effects, effects
are executed by handlers that feed events back, and observers see every model
change in order.

# Basic Usage

Define the three type parameters (model, event, effect), an update function,
and an effect handler, then build a loop:

	router := mobius.NewRouter[Effect, Event]().
	    RouteFunc("fetch", mobius.Is[Effect, Fetch](), fetch).
	    RouteAction("log", mobius.Is[Effect, Log](), log)

	loop := mobius.NewLoop(update, initiate, router, Model{}).
	    Name("counter").
	    Logger(mobius.NewSlogLogger[Model, Event, Effect]("counter", nil))
	defer loop.Close()

	if err := loop.Start(); err != nil {
	    return err
	}
	loop.Dispatch(Increment{})

Transitions run one at a time on the loop's serial runner. Dispatch never
blocks and may be called from any goroutine; events dispatched while the loop
is stopped are dropped.

# Observers

Observers are Connectables that receive the model and may emit events back:

	sub, err := loop.Connect(view, nil)

A connected observer receives the current model immediately when the loop is
running, and on every Start. Each observer gets its own runner, so a slow
observer does not hold up the loop.

# Controller

Controller wraps a loop for the common case of a single view:

	c := mobius.NewController(loop)
	_ = c.ConnectView(view)
	_ = c.Start()

Calling lifecycle methods in the wrong state returns a *Violation that records
where the call was made. SetErrorHandler installs a process-wide handler for
violations.

# Effect Routing

Router dispatches each effect to the first route whose predicate matches.
RoutePipeline wraps a handler in a pipz pipeline for retries, backoff,
timeouts, fallbacks, and circuit breaking:

	router.RoutePipeline("save", mobius.Is[Effect, Save](), save,
	    mobius.WithTimeout[Effect, Event](2*time.Second),
	    mobius.WithBackoff[Effect, Event](3, 100*time.Millisecond),
	)

Disposing a router connection cancels the context of every running task and
discards anything they emit afterwards.

# Event Sources

ChannelSource, TickerSource, and the file source in source/file feed events
from outside the loop. MergeSources and MapSource combine and adapt them.

# Observability

Loggers chains Logger hooks around Initiate and Update. SlogLogger writes to
log/slog and SignalLogger emits capitan signals. MetricsProvider receives
lifecycle changes, processing durations, and dropped events.
*/
package mobius
