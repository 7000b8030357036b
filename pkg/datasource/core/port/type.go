// Package port defines the data source resolution port: the contract through which callers turn a
// logical data source name into a provisioning handle, regardless of whether a directory lookup or
// a managed connection pool produces it.
package port

import (
	"fmt"
	"strings"
)

// Type discriminates the back end a data source is resolved through.
// The zero value is not a valid type.
type Type int

const (
	// TypeDirectory resolves names through a naming/lookup service binding.
	TypeDirectory Type = iota + 1
	// TypePooled resolves names (or raw configuration) through a managed connection pool.
	TypePooled
)

// Types returns every known Type in declaration order.
func Types() []Type {
	return []Type{TypeDirectory, TypePooled}
}

// String returns the canonical lower-case name of the type.
func (t Type) String() string {
	switch t {
	case TypeDirectory:
		return "directory"
	case TypePooled:
		return "pooled"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Valid reports whether t is one of the declared types.
func (t Type) Valid() bool {
	return t == TypeDirectory || t == TypePooled
}

// ParseType parses a type name. "jndi" is accepted as an alias of "directory".
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "directory", "jndi":
		return TypeDirectory, nil
	case "pooled", "pool":
		return TypePooled, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
