package mobius

import (
	"context"
	"slices"
	"time"

	"github.com/zoobzio/pipz"
)

// Identities for the processors the router builds.
var (
	handlerID        = pipz.NewIdentity("mobius:handler", "Runs a route handler for one effect")
	retryID          = pipz.NewIdentity("mobius:retry", "Retries a failed route handler")
	backoffID        = pipz.NewIdentity("mobius:backoff", "Retries a failed route handler with exponential backoff")
	timeoutID        = pipz.NewIdentity("mobius:timeout", "Bounds the duration of a route handler")
	fallbackID       = pipz.NewIdentity("mobius:fallback", "Tries alternative handlers when a route handler fails")
	circuitBreakerID = pipz.NewIdentity("mobius:circuit-breaker", "Stops calling a route handler that keeps failing")
	errorHandlerID   = pipz.NewIdentity("mobius:error-handler", "Observes route handler failures")
	middlewareID     = pipz.NewIdentity("mobius:middleware", "Runs processors ahead of a route handler")
	rateLimitID      = pipz.NewIdentity("mobius:rate-limit", "Limits how often a route handler runs")
	filterID         = pipz.NewIdentity("mobius:filter", "Skips a route handler for effects that fail a condition")
)

// Option configures the processing pipeline of a route added with
// RoutePipeline. Options wrap the handler with middleware for retry, timeout,
// circuit breaking, and other reliability patterns. They apply in order, so
// the last option is the outermost wrapper.
type Option[F, E any] func(pipz.Chainable[*Request[F, E]]) pipz.Chainable[*Request[F, E]]

// buildPipeline wraps a terminal with pipeline options.
func buildPipeline[F, E any](terminal pipz.Chainable[*Request[F, E]], opts []Option[F, E]) pipz.Chainable[*Request[F, E]] {
	pipeline := terminal
	for _, opt := range opts {
		pipeline = opt(pipeline)
	}
	return pipeline
}

// RoutePipeline adds a route whose handler runs inside a pipz pipeline built
// from opts. The events of the successful run are delivered in order; a
// failure that survives every option is recorded like any handler failure.
//
// Example:
//
//	router.RoutePipeline("fetch", mobius.Is[Effect, Fetch](), fetch,
//	    mobius.WithTimeout[Effect, Event](2*time.Second),
//	    mobius.WithBackoff[Effect, Event](3, 100*time.Millisecond),
//	)
func (r *Router[F, E]) RoutePipeline(name string, match func(F) bool, fn func(ctx context.Context, effect F) ([]E, error), opts ...Option[F, E]) *Router[F, E] {
	terminal := pipz.Apply(handlerID, func(ctx context.Context, req *Request[F, E]) (*Request[F, E], error) {
		req.Attempt++
		events, err := fn(ctx, req.Effect)
		if err != nil {
			return req, err
		}
		return &Request[F, E]{
			Route:   req.Route,
			Effect:  req.Effect,
			Events:  append(slices.Clip(req.Events), events...),
			Attempt: req.Attempt,
		}, nil
	})
	pipeline := buildPipeline[F, E](terminal, opts)

	return r.Route(name, match, func(ctx context.Context, effect F, emitter Emitter[E]) {
		result, err := pipeline.Process(ctx, &Request[F, E]{Route: name, Effect: effect})
		if err != nil {
			emitter.Fail(unwrapPipeline[F, E](err))
			return
		}
		for _, event := range result.Events {
			emitter.Emit(event)
		}
		emitter.Done()
	})
}

// unwrapPipeline strips pipz's path information from a pipeline error.
func unwrapPipeline[F, E any](err error) error {
	if perr, ok := err.(*pipz.Error[*Request[F, E]]); ok && perr.Err != nil {
		return perr.Err
	}
	return err
}

// -----------------------------------------------------------------------------
// Pipeline Options - Wrapping (With*)
// -----------------------------------------------------------------------------

// WithRetry wraps the handler with retry logic.
// Failed runs are retried immediately up to maxAttempts times.
// For exponential backoff between retries, use WithBackoff instead.
func WithRetry[F, E any](maxAttempts int) Option[F, E] {
	return func(p pipz.Chainable[*Request[F, E]]) pipz.Chainable[*Request[F, E]] {
		return pipz.NewRetry(retryID, p, maxAttempts)
	}
}

// WithBackoff wraps the handler with exponential backoff retry logic.
// Failed runs are retried with increasing delays: baseDelay, 2*baseDelay, 4*baseDelay, etc.
func WithBackoff[F, E any](maxAttempts int, baseDelay time.Duration) Option[F, E] {
	return func(p pipz.Chainable[*Request[F, E]]) pipz.Chainable[*Request[F, E]] {
		return pipz.NewBackoff(backoffID, p, maxAttempts, baseDelay)
	}
}

// WithTimeout wraps the handler with a timeout. The handler's context is
// cancelled when d elapses and the run fails with a timeout error.
func WithTimeout[F, E any](d time.Duration) Option[F, E] {
	return func(p pipz.Chainable[*Request[F, E]]) pipz.Chainable[*Request[F, E]] {
		return pipz.NewTimeout(timeoutID, p, d)
	}
}

// WithFallback wraps the handler with fallback processors.
// If the handler fails, each fallback is tried in order until one succeeds.
func WithFallback[F, E any](fallbacks ...pipz.Chainable[*Request[F, E]]) Option[F, E] {
	return func(p pipz.Chainable[*Request[F, E]]) pipz.Chainable[*Request[F, E]] {
		all := append([]pipz.Chainable[*Request[F, E]]{p}, fallbacks...)
		return pipz.NewFallback(fallbackID, all...)
	}
}

// WithCircuitBreaker wraps the handler with circuit breaker protection.
// After 'failures' consecutive failures the circuit opens and effects on this
// route fail immediately until 'recovery' has passed.
//
// The breaker is shared by every effect the route handles.
func WithCircuitBreaker[F, E any](failures int, recovery time.Duration) Option[F, E] {
	return func(p pipz.Chainable[*Request[F, E]]) pipz.Chainable[*Request[F, E]] {
		return pipz.NewCircuitBreaker(circuitBreakerID, p, failures, recovery)
	}
}

// WithErrorHandler adds error observation to the pipeline.
// Errors are passed to the handler for logging, metrics, or alerting,
// but the error still propagates. Use this for observability, not recovery.
func WithErrorHandler[F, E any](handler pipz.Chainable[*pipz.Error[*Request[F, E]]]) Option[F, E] {
	return func(p pipz.Chainable[*Request[F, E]]) pipz.Chainable[*Request[F, E]] {
		return pipz.NewHandle(errorHandlerID, p, handler)
	}
}

// WithRateLimit throttles the handler with a token bucket of the given rate
// (runs per second) and burst. Effects wait for a token; the wait ends early
// when the task context is cancelled.
func WithRateLimit[F, E any](rate float64, burst int) Option[F, E] {
	return func(p pipz.Chainable[*Request[F, E]]) pipz.Chainable[*Request[F, E]] {
		return pipz.NewRateLimiter[*Request[F, E]](rateLimitID, rate, burst, p)
	}
}

// WithFilter runs the handler only for effects that satisfy condition. A
// skipped effect finishes the task without events.
func WithFilter[F, E any](condition func(ctx context.Context, effect F) bool) Option[F, E] {
	return func(p pipz.Chainable[*Request[F, E]]) pipz.Chainable[*Request[F, E]] {
		return pipz.NewFilter(filterID, func(ctx context.Context, req *Request[F, E]) bool {
			return condition(ctx, req.Effect)
		}, p)
	}
}

// WithMiddleware runs processors ahead of the handler, in order.
// Use UseApply and UseEffect to build them.
func WithMiddleware[F, E any](processors ...pipz.Chainable[*Request[F, E]]) Option[F, E] {
	return func(p pipz.Chainable[*Request[F, E]]) pipz.Chainable[*Request[F, E]] {
		all := make([]pipz.Chainable[*Request[F, E]], 0, len(processors)+1)
		all = append(all, processors...)
		all = append(all, p)
		return pipz.NewSequence(middlewareID, all...)
	}
}

// -----------------------------------------------------------------------------
// Middleware Processors (Use*)
// -----------------------------------------------------------------------------

// UseApply creates a processor that can rewrite the request or fail, for
// example to validate an effect or to seed events ahead of the handler's.
func UseApply[F, E any](name, description string, fn func(context.Context, *Request[F, E]) (*Request[F, E], error)) pipz.Chainable[*Request[F, E]] {
	return pipz.Apply(pipz.NewIdentity(name, description), fn)
}

// UseEffect creates a processor that performs a side effect and passes the
// request through unchanged.
func UseEffect[F, E any](name, description string, fn func(context.Context, *Request[F, E]) error) pipz.Chainable[*Request[F, E]] {
	return pipz.Effect(pipz.NewIdentity(name, description), fn)
}
