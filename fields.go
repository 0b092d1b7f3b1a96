package mobius

import "github.com/zoobzio/capitan"

// Field keys for loop and router signals.
var (
	// KeyLoop is the configured name of the loop.
	KeyLoop = capitan.NewStringKey("loop")

	// KeyOldState is the lifecycle state before a transition.
	KeyOldState = capitan.NewStringKey("old_state")

	// KeyNewState is the lifecycle state after a transition.
	KeyNewState = capitan.NewStringKey("new_state")

	// KeyOperation is the operation that triggered a violation.
	KeyOperation = capitan.NewStringKey("operation")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyLocation is the file:line of the call that caused a violation.
	KeyLocation = capitan.NewStringKey("location")

	// KeyRoute is the name of the router route involved.
	KeyRoute = capitan.NewStringKey("route")

	// KeyObserver is the registry key of an observer.
	KeyObserver = capitan.NewStringKey("observer")

	// KeyEvent is a printable form of the event being processed.
	KeyEvent = capitan.NewStringKey("event")

	// KeyModelChanged reports whether an update produced a new model.
	KeyModelChanged = capitan.NewStringKey("model_changed")

	// KeyEffects is the number of effects produced by a transition.
	KeyEffects = capitan.NewIntKey("effects")

	// KeyDuration is how long an operation took.
	KeyDuration = capitan.NewDurationKey("duration")
)
