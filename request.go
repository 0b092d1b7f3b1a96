package mobius

// Request carries one effect through a route pipeline. Stages may inspect the
// effect and append to or rewrite Events; whatever Events holds when the
// pipeline succeeds is delivered to the loop, in order.
type Request[F, E any] struct {
	// Route is the name of the route handling the effect.
	Route string

	// Effect is the effect being handled.
	Effect F

	// Events are the events produced so far.
	Events []E

	// Attempt counts terminal invocations, starting at 1. Retrying
	// wrappers increase it.
	Attempt int
}
