// Package errors provides structured error handling for seaflow.
//
// Every error raised while planning or running a job is an *Error carrying an
// ErrorType. Callers branch on the type with IsType rather than on message
// text, and read diagnostic context (source index, plugin name, table name)
// from Details.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents resource not found errors
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConnection represents connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeConfig represents job file and option errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeData represents record processing errors
	ErrorTypeData ErrorType = "data"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"

	// ErrorTypePluginNotFound means no implementation is registered for a plugin identifier
	ErrorTypePluginNotFound ErrorType = "plugin_not_found"
	// ErrorTypePluginConfig means a plugin rejected its configuration while being instantiated or prepared
	ErrorTypePluginConfig ErrorType = "plugin_configuration"
	// ErrorTypeUnsupportedMode means a source's boundedness cannot satisfy the job mode
	ErrorTypeUnsupportedMode ErrorType = "unsupported_source_mode"
	// ErrorTypeDuplicateTable means a result table name was registered twice in one pass
	ErrorTypeDuplicateTable ErrorType = "duplicate_table_name"
	// ErrorTypeDependency means plugin dependency locations could not be registered with the engine
	ErrorTypeDependency ErrorType = "dependency_registration"
)

// Detail keys shared by the planner and the engine.
const (
	DetailSourceIndex = "source_index"
	DetailStage       = "stage"
	DetailPlugin      = "plugin"
	DetailTable       = "table"
	DetailLocation    = "location"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
// Error renders "type: message: cause". A wrapped *Error of the same type
// is rendered without repeating the type.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.text())
}

func (e *Error) text() string {
	if e.Cause == nil {
		return e.Message
	}
	if inner, ok := e.Cause.(*Error); ok && inner.Type == e.Type {
		return e.Message + ": " + inner.text()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context. Details of a wrapped
// *Error are carried over so diagnostics survive re-wrapping.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	var existingErr *Error
	if errors.As(err, &existingErr) {
		wrapped := &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
		for k, v := range existingErr.Details {
			wrapped.WithDetail(k, v)
		}
		return wrapped
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsRetryable returns true if the error is retryable
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeConnection:
		return true
	default:
		return false
	}
}

// IsType checks if the outermost *Error in the chain is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the type of the outermost *Error, or ErrorTypeInternal for foreign errors
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}

// DetailOf returns a detail value recorded on the outermost *Error
func DetailOf(err error, key string) (interface{}, bool) {
	var e *Error
	if !errors.As(err, &e) || e.Details == nil {
		return nil, false
	}
	v, ok := e.Details[key]
	return v, ok
}

// Is, As and Join re-export the standard helpers so callers need one import
var (
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
)

// captureStack captures the current call stack
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
