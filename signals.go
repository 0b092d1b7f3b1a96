package mobius

import "github.com/zoobzio/capitan"

// Loop lifecycle signals.
var (
	// LoopStarted is emitted when a Loop finishes starting.
	LoopStarted = capitan.NewSignal(
		"mobius.loop.started",
		"Loop started processing events",
	)

	// LoopStopped is emitted when a Loop finishes stopping.
	LoopStopped = capitan.NewSignal(
		"mobius.loop.stopped",
		"Loop stopped processing events",
	)

	// LoopStateChanged is emitted on every lifecycle transition.
	LoopStateChanged = capitan.NewSignal(
		"mobius.loop.state.changed",
		"Loop lifecycle transition",
	)

	// LoopViolation is emitted by the default error handler when an
	// operation is attempted in the wrong lifecycle state or a router is
	// misconfigured.
	LoopViolation = capitan.NewSignal(
		"mobius.loop.violation",
		"Lifecycle or configuration violation",
	)
)

// Event processing signals.
var (
	// LoopEventDropped is emitted when an event reaches a loop that is not started.
	LoopEventDropped = capitan.NewSignal(
		"mobius.loop.event.dropped",
		"Event dropped because the loop is not started",
	)

	// LoopObserverConnected is emitted when an observer is registered.
	LoopObserverConnected = capitan.NewSignal(
		"mobius.loop.observer.connected",
		"Observer registered",
	)

	// LoopObserverDisconnected is emitted when an observer is unregistered.
	LoopObserverDisconnected = capitan.NewSignal(
		"mobius.loop.observer.disconnected",
		"Observer unregistered",
	)
)

// Router signals.
var (
	// RouterEffectUnmatched is emitted when no route accepts an effect.
	RouterEffectUnmatched = capitan.NewSignal(
		"mobius.router.effect.unmatched",
		"No route matched the effect",
	)

	// RouterEffectFailed is emitted when a route handler reports an error.
	RouterEffectFailed = capitan.NewSignal(
		"mobius.router.effect.failed",
		"Effect handler failed",
	)

	// RouterLateEventDiscarded is emitted when a handler emits after its
	// connection was disposed or after its own completion.
	RouterLateEventDiscarded = capitan.NewSignal(
		"mobius.router.event.discarded",
		"Late event discarded",
	)
)

// Logger signals, emitted by SignalLogger.
var (
	// LoggerBeforeInit is emitted before Initiate runs.
	LoggerBeforeInit = capitan.NewSignal(
		"mobius.logger.init.before",
		"Initiate about to run",
	)

	// LoggerAfterInit is emitted after Initiate returns.
	LoggerAfterInit = capitan.NewSignal(
		"mobius.logger.init.after",
		"Initiate returned",
	)

	// LoggerBeforeUpdate is emitted before Update runs.
	LoggerBeforeUpdate = capitan.NewSignal(
		"mobius.logger.update.before",
		"Update about to run",
	)

	// LoggerAfterUpdate is emitted after Update returns.
	LoggerAfterUpdate = capitan.NewSignal(
		"mobius.logger.update.after",
		"Update returned",
	)
)
