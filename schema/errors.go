package schema

import (
	"errors"
	"fmt"
)

// ErrBuild indicates a type could not be mapped to any schema strategy.
var ErrBuild = errors.New("schema build failed")

// BuildError wraps ErrBuild with the type that could not be mapped.
type BuildError struct {
	Type  string
	Cause error
}

func (e *BuildError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("schema build failed for %q: %v", e.Type, e.Cause)
	}
	return fmt.Sprintf("schema build failed for %q", e.Type)
}

func (e *BuildError) Unwrap() error {
	return ErrBuild
}
