package mobius

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// ChannelSource forwards every value received on a channel to its
// subscribers. Each subscription runs its own forwarding goroutine, so a
// channel shared by several subscriptions delivers each value to one of them.
type ChannelSource[E any] struct {
	ch <-chan E
}

// NewChannelSource wraps ch as an EventSource. Forwarding stops when the
// subscription is disposed or ch is closed.
func NewChannelSource[E any](ch <-chan E) *ChannelSource[E] {
	return &ChannelSource[E]{ch: ch}
}

// Subscribe starts forwarding to sink. Dispose waits for the forwarding
// goroutine to exit, so sink is not called after it returns and every value
// whose send completed before Dispose has been delivered.
func (s *ChannelSource[E]) Subscribe(sink Consumer[E]) Disposable {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-s.ch:
				if !ok {
					return
				}
				// A received value is always delivered; the sender has
				// already handed it over.
				sink(v)
			}
		}
	}()

	return stopAndWait(cancel, done)
}

// TickerSource emits an event on every tick of a clock.
type TickerSource[E any] struct {
	interval time.Duration
	event    func(time.Time) E
	clock    clockz.Clock
}

// NewTickerSource returns a source that calls event with the tick time every
// interval and emits the result.
func NewTickerSource[E any](interval time.Duration, event func(time.Time) E) *TickerSource[E] {
	return &TickerSource[E]{
		interval: interval,
		event:    event,
		clock:    clockz.RealClock,
	}
}

// Clock sets the clock that drives the ticker.
// Use this with clockz.FakeClock for deterministic tests. Must be called before Subscribe().
func (s *TickerSource[E]) Clock(clock clockz.Clock) *TickerSource[E] {
	s.clock = clock
	return s
}

// Subscribe starts a ticker for sink. Dispose stops it.
func (s *TickerSource[E]) Subscribe(sink Consumer[E]) Disposable {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	ticker := s.clock.NewTicker(s.interval)

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C():
				if ctx.Err() != nil {
					return
				}
				sink(s.event(t))
			}
		}
	}()

	return stopAndWait(cancel, done)
}

// MergeSources combines sources into one. Subscribing subscribes to each of
// them with the same sink; disposing disposes every subscription.
func MergeSources[E any](sources ...EventSource[E]) EventSource[E] {
	return EventSourceFunc[E](func(sink Consumer[E]) Disposable {
		subs := make([]Disposable, 0, len(sources))
		for _, src := range sources {
			if src == nil {
				continue
			}
			subs = append(subs, src.Subscribe(sink))
		}
		var once sync.Once
		return DisposableFunc(func() {
			once.Do(func() {
				for _, sub := range subs {
					sub.Dispose()
				}
			})
		})
	})
}

// MapSource converts the events of src with fn.
func MapSource[A, B any](src EventSource[A], fn func(A) B) EventSource[B] {
	return EventSourceFunc[B](func(sink Consumer[B]) Disposable {
		return src.Subscribe(func(a A) { sink(fn(a)) })
	})
}

// stopAndWait returns an idempotent Disposable that cancels a forwarding
// goroutine and waits for it to exit.
func stopAndWait(cancel context.CancelFunc, done <-chan struct{}) Disposable {
	return DisposableFunc(func() {
		cancel()
		<-done
	})
}

var (
	_ EventSource[int] = (*ChannelSource[int])(nil)
	_ EventSource[int] = (*TickerSource[int])(nil)
)
