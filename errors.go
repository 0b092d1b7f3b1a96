package mobius

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/zoobzio/capitan"
)

var (
	// ErrLifecycle matches every lifecycle violation: double start, stop when
	// stopped, replacing the model of a running loop, view misuse.
	ErrLifecycle = errors.New("mobius: lifecycle violation")

	// ErrUnmatchedEffect matches effects no router route accepted.
	ErrUnmatchedEffect = errors.New("mobius: no route matched effect")

	// ErrClosed is returned by blocking operations on a closed loop.
	ErrClosed = errors.New("mobius: loop is closed")
)

// Kind classifies a Violation.
type Kind int

const (
	// KindLifecycle is an operation attempted in the wrong lifecycle state.
	KindLifecycle Kind = iota
	// KindConfiguration is a wiring mistake such as an effect without a route.
	KindConfiguration
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindLifecycle:
		return "lifecycle"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Violation is a programmer error: it carries the failed operation, a message
// and the location of the offending call.
type Violation struct {
	Kind    Kind
	Op      string
	Message string
	File    string
	Line    int
}

// Error implements error.
func (v *Violation) Error() string {
	return fmt.Sprintf("mobius: %s: %s (%s)", v.Op, v.Message, v.Location())
}

// Location returns the call site as file:line.
func (v *Violation) Location() string {
	if v.File == "" {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(v.File), v.Line)
}

// Unwrap lets errors.Is match ErrLifecycle or ErrUnmatchedEffect.
func (v *Violation) Unwrap() error {
	if v.Kind == KindConfiguration {
		return ErrUnmatchedEffect
	}
	return ErrLifecycle
}

// ErrorHandler receives every reported Violation.
type ErrorHandler func(v *Violation)

var errorHandler atomic.Pointer[ErrorHandler]

// SetErrorHandler replaces the process-wide handler for violations and
// returns the previous one. Passing nil restores the default, which emits a
// LoopViolation signal.
func SetErrorHandler(h ErrorHandler) ErrorHandler {
	var prev ErrorHandler = defaultErrorHandler
	if old := errorHandler.Load(); old != nil {
		prev = *old
	}
	if h == nil {
		errorHandler.Store(nil)
		return prev
	}
	errorHandler.Store(&h)
	return prev
}

func defaultErrorHandler(v *Violation) {
	capitan.Emit(context.Background(), LoopViolation,
		KeyOperation.Field(v.Op),
		KeyError.Field(v.Message),
		KeyLocation.Field(v.Location()),
	)
}

// report hands v to the installed handler and returns it as an error.
func report(v *Violation) error {
	if h := errorHandler.Load(); h != nil {
		(*h)(v)
	} else {
		defaultErrorHandler(v)
	}
	return v
}

// callSite captures the caller of the public API function that invoked it.
type callSite struct {
	file string
	line int
}

func captureCallSite() callSite {
	// 0 = captureCallSite, 1 = public method, 2 = its caller.
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return callSite{}
	}
	return callSite{file: file, line: line}
}

func (c callSite) violation(kind Kind, op, msg string) *Violation {
	return &Violation{Kind: kind, Op: op, Message: msg, File: c.file, Line: c.line}
}
