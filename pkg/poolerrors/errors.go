// Package poolerrors provides structured error handling for spawnpool with
// categories, context details and stack traces.
//
// # Overview
//
// Pools and spawners never raise errors for lookups that find nothing;
// releasing an untracked item is a silent no-op. Errors only appear when a
// caller-supplied hook or a host primitive fails, when a disposed pool is
// used again, or when strict release mode rejects a double release.
//
// # Basic Usage
//
//	item, err := p.Acquire()
//	if poolerrors.IsType(err, poolerrors.ErrorTypeHook) {
//	    // the acquire hook failed; the entry stays marked in use
//	}
//
//	// The hook's own error is still reachable
//	if errors.Is(err, errOutOfTextures) { ... }
//
// # Thread Safety
//
// Error instances are not thread-safe for modification. Call WithDetail
// before sharing an error across goroutines.
package poolerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error.
type ErrorType string

const (
	// ErrorTypeInternal represents internal invariant violations
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents invalid arguments
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeHook represents a failure inside a caller-supplied pool hook
	ErrorTypeHook ErrorType = "hook"
	// ErrorTypeHost represents a failure of a host environment primitive
	ErrorTypeHost ErrorType = "host"
	// ErrorTypeDisposed represents use of a pool or spawner after disposal
	ErrorTypeDisposed ErrorType = "disposed"
	// ErrorTypeDoubleRelease represents releasing an item that is already free
	ErrorTypeDoubleRelease ErrorType = "double_release"
)

// Error represents a structured error with context.
//
// Fields:
//   - Type: Categorizes the error
//   - Message: Human-readable description
//   - Cause: The underlying error, usually the one a hook returned
//   - Details: Key-value pairs such as the pool name or hook phase
//   - Stack: Call stack at the point of creation
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error so errors.Is and errors.As can
// inspect hook failures.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error. Calls can be chained.
//
// Example:
//
//	err := poolerrors.New(poolerrors.ErrorTypeDisposed, "pool already disposed").
//	    WithDetail("pool", "bullets")
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message, capturing the
// call stack at the point of creation.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context. If the error is
// already a structured Error its stack trace is preserved. Returns nil if
// err is nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if any error in err's chain is a structured Error of the
// given type.
//
// Example:
//
//	if poolerrors.IsType(err, poolerrors.ErrorTypeDisposed) {
//	    // the spawner was torn down during scene unload
//	    return nil
//	}
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}
	return false
}

// captureStack captures the current call stack up to maxFrames deep,
// skipping the given number of frames from the top.
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
