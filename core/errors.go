package core

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure so executors can decide whether to retry it and
// callers can report it without inspecting error strings.
type Kind string

const (
	// KindUnclassified is reported for errors that carry no explicit kind.
	KindUnclassified Kind = "unclassified"
	// KindTransient marks failures that may succeed when retried (rate limits,
	// network errors, provider 5xx).
	KindTransient Kind = "transient"
	// KindTimeout marks an attempt that exceeded its deadline.
	KindTimeout Kind = "timeout"
	// KindCanceled marks work abandoned because the caller canceled.
	KindCanceled Kind = "canceled"
	// KindUnknownTool marks a tool call naming a tool that is not registered.
	KindUnknownTool Kind = "unknown_tool"
	// KindMalformedArguments marks tool arguments that are not a valid JSON
	// object or do not satisfy the tool's schema.
	KindMalformedArguments Kind = "malformed_arguments"
	// KindInvalidInput marks bad caller input or requests rejected by a provider.
	KindInvalidInput Kind = "invalid_input"
	// KindGraphDefinition marks a graph rejected at compile time.
	KindGraphDefinition Kind = "graph_definition"
	// KindGraphExecution marks a failure while walking a graph.
	KindGraphExecution Kind = "graph_execution"
	// KindInternal marks programming errors such as recovered panics.
	KindInternal Kind = "internal"
)

var (
	// ErrUnknownTool is matched by errors for calls to unregistered tools.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrMalformedArguments is matched by errors for unparsable or invalid tool arguments.
	ErrMalformedArguments = errors.New("malformed tool arguments")
	// ErrEmptyQuery is returned when a run is started without input.
	ErrEmptyQuery = errors.New("query must not be empty")
)

// Error is a classified failure. Op names the operation that failed
// (for example "tools" or "model.generate").
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// NewError wraps err with a kind and operation name.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap exposes the wrapped error to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the kind of err. The outermost *Error wins; context errors
// map to KindTimeout and KindCanceled.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrUnknownTool):
		return KindUnknownTool
	case errors.Is(err, ErrMalformedArguments):
		return KindMalformedArguments
	}

	return KindUnclassified
}

// IsRetriable reports whether the default retry policy retries err.
// Only transient failures and timeouts are retried. Errors without an
// explicit kind are fatal.
func IsRetriable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindTimeout:
		return true
	default:
		return false
	}
}
