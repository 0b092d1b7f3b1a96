package mobius

import (
	"context"
	"iter"
)

// RouteFunc adds a route whose handler produces at most one event. A zero
// event with a nil error is still delivered; return an error to emit nothing
// and record a failure.
func (r *Router[F, E]) RouteFunc(name string, match func(F) bool, fn func(ctx context.Context, effect F) (E, error)) *Router[F, E] {
	return r.Route(name, match, func(ctx context.Context, effect F, emitter Emitter[E]) {
		event, err := fn(ctx, effect)
		if err != nil {
			emitter.Fail(err)
			return
		}
		emitter.Emit(event)
		emitter.Done()
	})
}

// RouteBatch adds a route whose handler produces a batch of events, delivered
// in order. On error the events returned alongside it are still delivered
// before the failure is recorded.
func (r *Router[F, E]) RouteBatch(name string, match func(F) bool, fn func(ctx context.Context, effect F) ([]E, error)) *Router[F, E] {
	return r.Route(name, match, func(ctx context.Context, effect F, emitter Emitter[E]) {
		events, err := fn(ctx, effect)
		for _, event := range events {
			emitter.Emit(event)
		}
		if err != nil {
			emitter.Fail(err)
			return
		}
		emitter.Done()
	})
}

// RouteSeq adds a route whose handler yields a stream of events. The stream
// is abandoned as soon as the task context is cancelled.
func (r *Router[F, E]) RouteSeq(name string, match func(F) bool, fn func(ctx context.Context, effect F) iter.Seq[E]) *Router[F, E] {
	return r.Route(name, match, func(ctx context.Context, effect F, emitter Emitter[E]) {
		defer emitter.Done()
		for event := range fn(ctx, effect) {
			if ctx.Err() != nil {
				return
			}
			emitter.Emit(event)
		}
	})
}

// RouteAction adds a route for fire-and-forget effects that produce no events.
func (r *Router[F, E]) RouteAction(name string, match func(F) bool, fn func(ctx context.Context, effect F) error) *Router[F, E] {
	return r.Route(name, match, func(ctx context.Context, effect F, emitter Emitter[E]) {
		if err := fn(ctx, effect); err != nil {
			emitter.Fail(err)
			return
		}
		emitter.Done()
	})
}
