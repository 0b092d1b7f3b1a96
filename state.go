package mobius

// Lifecycle represents the run state of a Loop.
// Transitions are strictly sequential:
// Stopped → Starting → Started → Stopping → Stopped.
type Lifecycle int32

const (
	// LifecycleStopped indicates the loop is not processing events. The model
	// is retained and readable.
	LifecycleStopped Lifecycle = iota

	// LifecycleStarting indicates Start is wiring observers, the effect
	// handler and the event source.
	LifecycleStarting

	// LifecycleStarted indicates the loop is processing events.
	LifecycleStarted

	// LifecycleStopping indicates Stop is tearing connections down.
	LifecycleStopping
)

// String returns the string representation of the lifecycle state.
func (l Lifecycle) String() string {
	switch l {
	case LifecycleStopped:
		return "stopped"
	case LifecycleStarting:
		return "starting"
	case LifecycleStarted:
		return "started"
	case LifecycleStopping:
		return "stopping"
	default:
		return "unknown"
	}
}
