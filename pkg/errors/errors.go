// Package errors provides structured error reporting for the binding engine.
//
// Binding never fails loudly: resolution misses become nil values and
// handler faults are recovered. What does go wrong is reported here, through
// a process-wide [ErrorHandler] that defaults to [LogHandler].
package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownFormat is returned when a data file has an unsupported extension.
	ErrUnknownFormat = errors.New("unknown data file format")
	// ErrIncompatibleVersion is returned when a configuration requires a newer engine.
	ErrIncompatibleVersion = errors.New("incompatible engine version")
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindConfig indicates an invalid or unreadable configuration.
	KindConfig
	// KindLoad indicates a data file could not be loaded.
	KindLoad
	// KindWatch indicates a file watcher failure.
	KindWatch
	// KindHandler indicates a handler function fault.
	KindHandler
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindLoad:
		return "load"
	case KindWatch:
		return "watch"
	case KindHandler:
		return "handler"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// BindError represents a structured error outside of handler dispatch.
type BindError struct {
	// Op is the operation that failed (e.g., "datafile.Watcher.reload").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Err is the underlying error.
	Err error
	// Source is the data source or file involved, if any.
	Source string
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *BindError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s [%s] source=%s: %v", e.Op, e.Kind, e.Source, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "bind.Engine.flush").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// HandlerError represents a fault inside a binding handler.
type HandlerError struct {
	// Handler is the handler name as written in the handler list.
	Handler string
	// Phase is the lifecycle phase being dispatched.
	Phase string
	// Element describes the element the handler ran on.
	Element string
	// Host is true when the handler was forwarded to a host function.
	Host bool
	// Recovered is the panic value (nil for regular errors).
	Recovered any
	// Err is the underlying error (nil for panics).
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *HandlerError) Error() string {
	where := "handler"
	if e.Host {
		where = "host function"
	}
	if e.Recovered != nil {
		return fmt.Sprintf("panic in %s %q (%s): %v", where, e.Handler, e.Phase, e.Recovered)
	}
	if e.Err != nil {
		return fmt.Sprintf("error in %s %q (%s): %v", where, e.Handler, e.Phase, e.Err)
	}
	return fmt.Sprintf("unknown error in %s %q (%s)", where, e.Handler, e.Phase)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// ErrorHandler receives errors reported by the engine.
type ErrorHandler interface {
	// HandleError is called when an operation fails.
	HandleError(err *BindError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
	// HandleHandlerError is called when a binding handler faults.
	HandleHandlerError(err *HandlerError)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
