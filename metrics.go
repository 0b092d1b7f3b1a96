package mobius

import "time"

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on key loop events.
// Callbacks run on the loop's serial runner and must not block.
type MetricsProvider interface {
	// OnLifecycleChange is called on every lifecycle transition.
	OnLifecycleChange(from, to Lifecycle)

	// OnEventProcessed is called after an event went through Update,
	// observer notification and effect submission.
	OnEventProcessed(duration time.Duration, modelChanged bool)

	// OnEventDropped is called when an event reaches a loop that is not started.
	OnEventDropped()

	// OnEffectDispatched is called for each effect handed to the effect handler.
	OnEffectDispatched()
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnLifecycleChange(_, _ Lifecycle)         {}
func (NoOpMetricsProvider) OnEventProcessed(_ time.Duration, _ bool) {}
func (NoOpMetricsProvider) OnEventDropped()                          {}
func (NoOpMetricsProvider) OnEffectDispatched()                      {}
