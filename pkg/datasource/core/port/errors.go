package port

import (
	"errors"
	"fmt"
)

var (
	// ErrNaming matches every *NamingError through errors.Is.
	ErrNaming = errors.New("data source naming error")
	// ErrNotSupported matches every *NotSupportedError through errors.Is.
	ErrNotSupported = errors.New("operation not supported")

	// ErrNotFound is the cause of a NamingError when no registration exists for the name and type.
	ErrNotFound = errors.New("data source not found")
	// ErrMalformedName is the cause of a NamingError when the name cannot be used for lookup.
	ErrMalformedName = errors.New("malformed data source name")
	// ErrUnknownType is the cause of a NamingError when no back end exists for the requested type.
	ErrUnknownType = errors.New("unknown data source type")
)

// NamingError reports that a name/type combination could not be resolved.
// It always carries the operation, name and type so that callers can log or retry deliberately.
type NamingError struct {
	Op   string
	Name string
	// Type is zero when the lookup did not specify a type.
	Type Type
	Err  error
}

// NewNamingError creates a NamingError. A nil cause is replaced with ErrNotFound.
func NewNamingError(op, name string, typ Type, cause error) *NamingError {
	if cause == nil {
		cause = ErrNotFound
	}
	return &NamingError{Op: op, Name: name, Type: typ, Err: cause}
}

func (e *NamingError) Error() string {
	if e.Type.Valid() {
		return fmt.Sprintf("%s %q (%s): %v", e.Op, e.Name, e.Type, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.Err)
}

func (e *NamingError) Unwrap() error { return e.Err }

// Is makes every NamingError match ErrNaming.
func (e *NamingError) Is(target error) bool { return target == ErrNaming }

// NotSupportedError reports a capability gap in the selected back end.
// It is not a resolution failure and is not retryable.
type NotSupportedError struct {
	Op   string
	Type Type
}

// NotSupported returns the error an implementation reports for an operation it has no support for.
func NotSupported(op string, typ Type) error {
	return &NotSupportedError{Op: op, Type: typ}
}

func (e *NotSupportedError) Error() string {
	if e.Type.Valid() {
		return fmt.Sprintf("%s is not supported for %s data sources", e.Op, e.Type)
	}
	return fmt.Sprintf("%s is not supported", e.Op)
}

// Is makes every NotSupportedError match ErrNotSupported.
func (e *NotSupportedError) Is(target error) bool { return target == ErrNotSupported }

// IsNotSupported reports whether err signals a missing capability.
// Callers should take an alternate resolution path rather than retry.
func IsNotSupported(err error) bool {
	return errors.Is(err, ErrNotSupported)
}

// IsNamingError reports whether err is a resolution failure.
func IsNamingError(err error) bool {
	return errors.Is(err, ErrNaming)
}
