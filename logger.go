package mobius

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/zoobzio/capitan"
)

// Logger observes the four lifecycle points of a loop. Hooks run synchronously
// on the loop's serial runner; they must not block and must not mutate the
// values they are given.
type Logger[M, E, F any] interface {
	// BeforeInit is called before Initiate runs.
	BeforeInit(model M)

	// AfterInit is called with the result of Initiate.
	AfterInit(model M, result First[M, F])

	// BeforeUpdate is called before Update runs for event.
	BeforeUpdate(model M, event E)

	// AfterUpdate is called with the result of Update.
	AfterUpdate(model M, event E, result Next[M, F])
}

// NoOpLogger implements Logger with empty hooks.
// Embed it to implement only the hooks you need.
type NoOpLogger[M, E, F any] struct{}

func (NoOpLogger[M, E, F]) BeforeInit(_ M)                     {}
func (NoOpLogger[M, E, F]) AfterInit(_ M, _ First[M, F])       {}
func (NoOpLogger[M, E, F]) BeforeUpdate(_ M, _ E)              {}
func (NoOpLogger[M, E, F]) AfterUpdate(_ M, _ E, _ Next[M, F]) {}

// loggerChain nests loggers like an onion: before-hooks run first to last,
// after-hooks last to first, so the first logger sees every point first and
// last.
type loggerChain[M, E, F any] []Logger[M, E, F]

// Loggers composes loggers in order. Chains may themselves be composed.
func Loggers[M, E, F any](loggers ...Logger[M, E, F]) Logger[M, E, F] {
	chain := make(loggerChain[M, E, F], 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			chain = append(chain, l)
		}
	}
	return chain
}

func (c loggerChain[M, E, F]) forward(fn func(Logger[M, E, F])) {
	for _, l := range c {
		fn(l)
	}
}

func (c loggerChain[M, E, F]) reverse(fn func(Logger[M, E, F])) {
	for i := len(c) - 1; i >= 0; i-- {
		fn(c[i])
	}
}

func (c loggerChain[M, E, F]) BeforeInit(model M) {
	c.forward(func(l Logger[M, E, F]) { l.BeforeInit(model) })
}

func (c loggerChain[M, E, F]) AfterInit(model M, result First[M, F]) {
	c.reverse(func(l Logger[M, E, F]) { l.AfterInit(model, result) })
}

func (c loggerChain[M, E, F]) BeforeUpdate(model M, event E) {
	c.forward(func(l Logger[M, E, F]) { l.BeforeUpdate(model, event) })
}

func (c loggerChain[M, E, F]) AfterUpdate(model M, event E, result Next[M, F]) {
	c.reverse(func(l Logger[M, E, F]) { l.AfterUpdate(model, event, result) })
}

// SlogLogger logs every hook at debug level through a slog.Logger.
type SlogLogger[M, E, F any] struct {
	tag    string
	logger *slog.Logger
}

// NewSlogLogger returns a SlogLogger. A nil logger uses slog.Default().
func NewSlogLogger[M, E, F any](tag string, logger *slog.Logger) *SlogLogger[M, E, F] {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger[M, E, F]{tag: tag, logger: logger.With("loop", tag)}
}

func (s *SlogLogger[M, E, F]) BeforeInit(model M) {
	s.logger.Debug("initializing loop", "model", model)
}

func (s *SlogLogger[M, E, F]) AfterInit(_ M, result First[M, F]) {
	s.logger.Debug("loop initialized", "model", result.Model, "effects", len(result.Effects))
}

func (s *SlogLogger[M, E, F]) BeforeUpdate(model M, event E) {
	s.logger.Debug("event received", "event", event, "model", model)
}

func (s *SlogLogger[M, E, F]) AfterUpdate(_ M, event E, result Next[M, F]) {
	if m, ok := result.Model(); ok {
		s.logger.Debug("model updated", "event", event, "model", m, "effects", len(result.Effects()))
		return
	}
	s.logger.Debug("model unchanged", "event", event, "effects", len(result.Effects()))
}

// SignalLogger emits a capitan signal at every hook.
type SignalLogger[M, E, F any] struct {
	tag string
}

// NewSignalLogger returns a SignalLogger whose signals carry tag as KeyLoop.
func NewSignalLogger[M, E, F any](tag string) *SignalLogger[M, E, F] {
	return &SignalLogger[M, E, F]{tag: tag}
}

func (s *SignalLogger[M, E, F]) BeforeInit(_ M) {
	capitan.Emit(context.Background(), LoggerBeforeInit, KeyLoop.Field(s.tag))
}

func (s *SignalLogger[M, E, F]) AfterInit(_ M, result First[M, F]) {
	capitan.Emit(context.Background(), LoggerAfterInit,
		KeyLoop.Field(s.tag),
		KeyEffects.Field(len(result.Effects)),
	)
}

func (s *SignalLogger[M, E, F]) BeforeUpdate(_ M, event E) {
	capitan.Emit(context.Background(), LoggerBeforeUpdate,
		KeyLoop.Field(s.tag),
		KeyEvent.Field(fmt.Sprint(event)),
	)
}

func (s *SignalLogger[M, E, F]) AfterUpdate(_ M, event E, result Next[M, F]) {
	capitan.Emit(context.Background(), LoggerAfterUpdate,
		KeyLoop.Field(s.tag),
		KeyEvent.Field(fmt.Sprint(event)),
		KeyModelChanged.Field(strconv.FormatBool(result.HasModel())),
		KeyEffects.Field(len(result.Effects())),
	)
}

var (
	_ Logger[int, int, int] = NoOpLogger[int, int, int]{}
	_ Logger[int, int, int] = (*SlogLogger[int, int, int])(nil)
	_ Logger[int, int, int] = (*SignalLogger[int, int, int])(nil)
	_ Logger[int, int, int] = loggerChain[int, int, int](nil)
)
