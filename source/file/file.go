// Package file provides an event source that emits the decoded contents of a
// file each time it changes.
package file

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/mobius"
)

// Signals.
var (
	SourceFailed = capitan.NewSignal("mobius.file.failed", "File source could not watch, read or decode its file")
)

// Keys.
var (
	KeyPath = capitan.NewStringKey("path")
)

// validate is the shared validator instance.
var validate = validator.New()

// Source watches a file and emits its contents, decoded into an E, on
// subscription and after every write. Contents that fail to decode are
// reported and skipped; the source keeps watching.
type Source[E any] struct {
	path     string
	codec    mobius.Codec
	debounce time.Duration
	clock    clockz.Clock
	onError  func(error)
}

// New creates a Source for path. The codec is chosen from the file extension
// (see mobius.CodecFor).
func New[E any](path string) *Source[E] {
	return &Source[E]{
		path:  path,
		codec: mobius.CodecFor(path),
		clock: clockz.RealClock,
	}
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// Codec sets the codec used to decode the file. Must be called before Subscribe().
func (s *Source[E]) Codec(codec mobius.Codec) *Source[E] {
	s.codec = codec
	return s
}

// Debounce coalesces writes arriving within d into one emission.
// Default: 0, every write is emitted. Must be called before Subscribe().
func (s *Source[E]) Debounce(d time.Duration) *Source[E] {
	s.debounce = d
	return s
}

// Clock sets the clock used for debouncing.
// Use this with clockz.FakeClock for deterministic tests. Must be called before Subscribe().
func (s *Source[E]) Clock(clock clockz.Clock) *Source[E] {
	s.clock = clock
	return s
}

// OnError sets a callback for watch, read and decode failures, in addition
// to the SourceFailed signal. Must be called before Subscribe().
func (s *Source[E]) OnError(fn func(error)) *Source[E] {
	s.onError = fn
	return s
}

// Path returns the watched path.
func (s *Source[E]) Path() string {
	return s.path
}

// Subscribe starts watching and emits the current contents. If the file
// cannot be watched the failure is reported and the returned Disposable does
// nothing. Dispose waits for the watch goroutine, so sink is not called after
// it returns.
func (s *Source[E]) Subscribe(sink mobius.Consumer[E]) mobius.Disposable {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.fail(fmt.Errorf("failed to create fsnotify watcher: %w", err))
		return mobius.DisposableFunc(func() {})
	}
	if err := watcher.Add(s.path); err != nil {
		watcher.Close() //nolint:errcheck // already failing
		s.fail(fmt.Errorf("failed to watch file %s: %w", s.path, err))
		return mobius.DisposableFunc(func() {})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer watcher.Close() //nolint:errcheck // nothing to do on close failure
		s.watch(ctx, watcher, sink)
	}()

	return mobius.DisposableFunc(func() {
		cancel()
		<-done
	})
}

func (s *Source[E]) watch(ctx context.Context, watcher *fsnotify.Watcher, sink mobius.Consumer[E]) {
	s.emit(ctx, sink)

	var timer clockz.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		var timerC <-chan time.Time
		if timer != nil {
			timerC = timer.C()
		}

		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			// Only emit on write or create events
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if s.debounce <= 0 {
				s.emit(ctx, sink)
				continue
			}
			if timer == nil {
				timer = s.clock.NewTimer(s.debounce)
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C():
				default:
				}
			}
			timer.Reset(s.debounce)

		case <-timerC:
			s.emit(ctx, sink)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			// Continue watching despite errors
			s.fail(fmt.Errorf("watching %s: %w", s.path, err))
		}
	}
}

// emit reads and decodes the file and hands the result to sink.
func (s *Source[E]) emit(ctx context.Context, sink mobius.Consumer[E]) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.fail(fmt.Errorf("failed to read %s: %w", s.path, err))
		return
	}
	var event E
	if err := s.codec.Unmarshal(data, &event); err != nil {
		s.fail(fmt.Errorf("failed to decode %s as %s: %w", s.path, s.codec.ContentType(), err))
		return
	}
	if err := validateStruct(event); err != nil {
		s.fail(fmt.Errorf("invalid contents in %s: %w", s.path, err))
		return
	}
	if ctx.Err() != nil {
		return
	}
	sink(event)
}

// validateStruct runs validator on struct values and pointers to structs.
// Other kinds carry no tags and always pass.
func validateStruct(v any) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	return validate.Struct(rv.Interface())
}

func (s *Source[E]) fail(err error) {
	capitan.Emit(context.Background(), SourceFailed,
		KeyPath.Field(s.path),
		mobius.KeyError.Field(err.Error()),
	)
	if s.onError != nil {
		s.onError(err)
	}
}

var _ mobius.EventSource[int] = (*Source[int])(nil)
