package serde

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrTypeMismatch indicates a runtime value did not match the static
	// type a routine was compiled for.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrUnresolvable indicates a type could not be normalized into a
	// usable annotation. This is a usage defect, not a data condition.
	ErrUnresolvable = errors.New("unresolvable type")

	// ErrUnsupported indicates a value kind that has no serialization
	// strategy (channels, funcs, unsafe pointers).
	ErrUnsupported = errors.New("unsupported kind")
)

// TypeMismatchError is raised by a compiled routine when the runtime value
// is not an instance of the expected static type. It carries the qualified
// names of both types and the field path that was being serialized.
type TypeMismatchError struct {
	Actual   string // qualified name of the runtime type
	Expected string // qualified name of the compiled type
	Path     string // human-readable field path, may be empty
	Subtype  bool   // whether subtypes were acceptable
}

func (e *TypeMismatchError) Error() string {
	pre := ""
	if e.Path != "" {
		pre = e.Path + ": "
	}
	sub := ""
	if e.Subtype {
		sub = "a subtype of "
	}
	return fmt.Sprintf("%stype %q is not %stype %q", pre, e.Actual, sub, e.Expected)
}

func (e *TypeMismatchError) Unwrap() error {
	return ErrTypeMismatch
}

// newTypeMismatch creates a TypeMismatchError for a failed validation.
func newTypeMismatch(actual, expected, path string, subtype bool) error {
	return &TypeMismatchError{
		Actual:   actual,
		Expected: expected,
		Path:     path,
		Subtype:  subtype,
	}
}

// UnsupportedError reports a value that no strategy can serialize.
type UnsupportedError struct {
	Type string
	Path string
}

func (e *UnsupportedError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: cannot serialize value of type %q", e.Path, e.Type)
	}
	return fmt.Sprintf("cannot serialize value of type %q", e.Type)
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupported
}
