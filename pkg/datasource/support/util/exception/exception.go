// Package exception provides the module-tagged error used by configuration loading and
// the back ends, and helpers that classify errors as temporary.
package exception

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Error is an error raised inside a module of the data source framework.
// It records the module, a concise message, the wrapped cause, and whether retrying may help.
type Error struct {
	// Module indicates where the error occurred (e.g., "config", "pool", "directory").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	retryable   bool
}

// NewError creates a new Error.
func NewError(module, message string, originalErr error, retryable bool) *Error {
	return &Error{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		retryable:   retryable,
	}
}

// NewErrorf creates a new Error with a formatted message. A trailing error argument becomes the cause.
//
// NewErrorf("pool", "failed to open %q", name, err)
func NewErrorf(module, format string, a ...interface{}) *Error {
	var originalErr error
	if len(a) > 0 {
		if err, ok := a[len(a)-1].(error); ok {
			originalErr = err
			a = a[:len(a)-1]
		}
	}
	return NewError(module, fmt.Sprintf(format, a...), originalErr, IsTemporary(originalErr))
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error.
func (e *Error) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable reports whether retrying the failed operation may succeed.
func (e *Error) IsRetryable() bool {
	return e.retryable
}

// IsTemporary determines if an error is temporary (timeouts, refused connections, dropped links).
// An *Error's retryable flag takes precedence.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.IsRetryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF")
}
