// Package classify implements the PML's closed error taxonomy (C15). Every
// error surfaced by a tool invocation, a sandboxed execution, or an internal
// validation failure is mapped into one of a fixed set of kinds, which in
// turn drives retry policy (invoker), safe-to-fail handling (workflow
// controller), and the learning signal recorded on a Trace.
package classify

import (
	"context"
	"errors"
	"fmt"
)

// Kind is a member of the closed error taxonomy.
type Kind string

const (
	Validation  Kind = "validation"
	NotFound    Kind = "not_found"
	Network     Kind = "network"
	Timeout     Kind = "timeout"
	Permission  Kind = "permission"
	Runtime     Kind = "runtime"
	ToolRejected Kind = "tool_rejected"
)

// Retryable reports whether errors of this kind are ever eligible for
// automatic retry (subject to the idempotency/side-effects gates applied by
// the caller — this only answers the taxonomy-level question).
func (k Kind) Retryable() bool {
	switch k {
	case Network, Timeout, Runtime:
		return true
	default:
		return false
	}
}

// Error is a classified, wrapped error carrying the component/operation
// that produced it, matching the "[Component:Operation] message: cause"
// convention used throughout the PML.
type Error struct {
	Kind      Kind
	Component string
	Operation string
	Message   string
	Cause     error
}

func New(kind Kind, component, operation, message string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Operation: operation, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Operation, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// As reports whether err is (or wraps) a *Error and returns its Kind.
func As(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

// Classify maps a raw error into a Kind using structural checks first
// (context deadline/cancellation, *Error already classified) and falling
// back to Runtime for anything unrecognized — an unknown error is always
// conservative (never silently treated as retryable-on-idempotent-tools
// unless it genuinely is network/timeout shaped).
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	if kind, ok := As(err); ok {
		return kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	if errors.Is(err, context.Canceled) {
		return Timeout
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Timeout
		}
		return Network
	}
	return Runtime
}
