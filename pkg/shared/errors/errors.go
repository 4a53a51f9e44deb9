// Package errors provides component-internal "failed to X" error wrapping
// used inside the engine, citation validator, and LLM gateway. It composes
// with the standard errors.Is/errors.As chain via go-faster/errors, which
// supplies the underlying Wrap/stack-aware formatting.
package errors

import (
	"fmt"
	"strings"

	faster "github.com/go-faster/errors"
)

// OperationError describes a failed operation together with the component
// and resource it was acting on.
type OperationError struct {
	Operation string
	Component string
	Resource  string
	Cause     error
}

func (e *OperationError) Error() string {
	var b strings.Builder
	b.WriteString("failed to ")
	b.WriteString(e.Operation)
	if e.Component != "" {
		fmt.Fprintf(&b, ", component: %s", e.Component)
	}
	if e.Resource != "" {
		fmt.Fprintf(&b, ", resource: %s", e.Resource)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ", cause: %s", e.Cause.Error())
	}
	return b.String()
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// FailedTo wraps cause with a short "failed to <action>[: cause]" message.
func FailedTo(action string, cause error) error {
	if cause == nil {
		return faster.Newf("failed to %s", action)
	}
	return faster.Wrapf(cause, "failed to %s", action)
}

// FailedToWithDetails wraps cause into a structured *OperationError carrying
// the operation, component, and resource involved.
func FailedToWithDetails(operation, component, resource string, cause error) error {
	return &OperationError{
		Operation: operation,
		Component: component,
		Resource:  resource,
		Cause:     cause,
	}
}

// Wrapf wraps err with a formatted message, following the fmt.Errorf %w
// idiom; a nil err returns nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return faster.Wrapf(err, format, args...)
}

func DatabaseError(operation string, cause error) error {
	return FailedToWithDetails(operation, "database", "", cause)
}

func NetworkError(operation, endpoint string, cause error) error {
	return FailedToWithDetails(operation, "network", endpoint, cause)
}

func ValidationError(field, reason string) error {
	return fmt.Errorf("validation failed for field %s: %s", field, reason)
}

func ConfigurationError(setting, reason string) error {
	return fmt.Errorf("configuration error for setting %s: %s", setting, reason)
}

func TimeoutError(operation, duration string) error {
	return fmt.Errorf("timeout while %s after %s", operation, duration)
}

func AuthenticationError(reason string) error {
	return fmt.Errorf("authentication failed: %s", reason)
}

func AuthorizationError(action, resource string) error {
	return fmt.Errorf("authorization failed: insufficient permissions to %s %s", action, resource)
}

func ParseError(what, format string, cause error) error {
	return faster.Wrapf(cause, "failed to parse %s as %s", what, format)
}

// retryableSubstrings are substrings identifying transient, infrastructure-
// class failures as opposed to permanent, content-class ones.
var retryableSubstrings = []string{
	"timeout",
	"connection refused",
	"unavailable",
	"temporarily",
	"reset by peer",
	"eof",
}

// IsRetryable reports whether err looks like a transient infrastructure
// failure that is worth retrying with backoff, as opposed to a permanent
// failure that should surface immediately.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Chain joins non-nil errors into one error. Zero errors returns nil, one
// error returns it unwrapped, more than one returns a "multiple errors: ..."
// summary joined with "; ".
func Chain(errs ...error) error {
	var kept []string
	var first error
	n := 0
	for _, e := range errs {
		if e == nil {
			continue
		}
		if n == 0 {
			first = e
		}
		kept = append(kept, e.Error())
		n++
	}
	switch n {
	case 0:
		return nil
	case 1:
		return first
	default:
		return fmt.Errorf("multiple errors: %s", strings.Join(kept, "; "))
	}
}
