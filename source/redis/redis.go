// Package redis provides an event source that emits the decoded value of a
// Redis key each time it is written, using keyspace notifications.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/mobius"
)

// Signals.
var (
	SourceFailed = capitan.NewSignal("mobius.redis.failed", "Redis source could not subscribe, read or decode its key")
)

// Keys.
var (
	KeyKey = capitan.NewStringKey("key")
)

// writeOps are the keyspace notification payloads that change a string value.
var writeOps = map[string]bool{
	"set":      true,
	"mset":     true,
	"setex":    true,
	"psetex":   true,
	"setnx":    true,
	"setrange": true,
	"append":   true,
	"incrby":   true,
}

// Source watches a Redis key and emits its value, decoded into an E, on
// subscription and after every write. A missing key emits nothing.
// Requires Redis to have keyspace notifications enabled:
//
//	CONFIG SET notify-keyspace-events KEA
type Source[E any] struct {
	client  *redis.Client
	key     string
	db      int
	codec   mobius.Codec
	onError func(error)
}

// New creates a Source for key. Values are decoded as JSON unless another
// codec is set.
func New[E any](client *redis.Client, key string) *Source[E] {
	return &Source[E]{
		client: client,
		key:    key,
		db:     client.Options().DB,
		codec:  mobius.JSONCodec{},
	}
}

// Codec sets the codec used to decode values. Must be called before Subscribe().
func (s *Source[E]) Codec(codec mobius.Codec) *Source[E] {
	s.codec = codec
	return s
}

// OnError sets a callback for subscribe, read and decode failures, in
// addition to the SourceFailed signal. Must be called before Subscribe().
func (s *Source[E]) OnError(fn func(error)) *Source[E] {
	s.onError = fn
	return s
}

// Channel returns the keyspace notification channel for the watched key.
func (s *Source[E]) Channel() string {
	return fmt.Sprintf("__keyspace@%d__:%s", s.db, s.key)
}

// Subscribe subscribes to keyspace notifications and emits the current value.
// If the subscription fails the failure is reported and the returned
// Disposable does nothing. Dispose waits for the watch goroutine.
func (s *Source[E]) Subscribe(sink mobius.Consumer[E]) mobius.Disposable {
	ctx, cancel := context.WithCancel(context.Background())
	pubsub := s.client.Subscribe(ctx, s.Channel())

	// Verify subscription worked
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close() //nolint:errcheck // already failing
		cancel()
		s.fail(fmt.Errorf("failed to subscribe to keyspace notifications: %w", err))
		return mobius.DisposableFunc(func() {})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer pubsub.Close() //nolint:errcheck // nothing to do on close failure
		s.watch(ctx, pubsub, sink)
	}()

	return mobius.DisposableFunc(func() {
		cancel()
		<-done
	})
}

func (s *Source[E]) watch(ctx context.Context, pubsub *redis.PubSub, sink mobius.Consumer[E]) {
	s.emit(ctx, sink)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if writeOps[msg.Payload] {
				s.emit(ctx, sink)
			}
		}
	}
}

// emit reads and decodes the key and hands the result to sink.
func (s *Source[E]) emit(ctx context.Context, sink mobius.Consumer[E]) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return
	}
	if err != nil {
		if ctx.Err() == nil {
			s.fail(fmt.Errorf("failed to read %s: %w", s.key, err))
		}
		return
	}
	var event E
	if err := s.codec.Unmarshal(data, &event); err != nil {
		s.fail(fmt.Errorf("failed to decode %s as %s: %w", s.key, s.codec.ContentType(), err))
		return
	}
	if ctx.Err() != nil {
		return
	}
	sink(event)
}

func (s *Source[E]) fail(err error) {
	capitan.Emit(context.Background(), SourceFailed,
		KeyKey.Field(s.key),
		mobius.KeyError.Field(err.Error()),
	)
	if s.onError != nil {
		s.onError(err)
	}
}

var _ mobius.EventSource[int] = (*Source[int])(nil)
