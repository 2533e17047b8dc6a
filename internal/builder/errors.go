package builder

import (
	"errors"
	"fmt"
)

var (
	// ErrNilObject is returned when Build is given no object to read.
	ErrNilObject = errors.New("nil object")

	// ErrEntityMismatch is returned when the object's type is not the type
	// the entity metadata describes.
	ErrEntityMismatch = errors.New("object does not match entity metadata")
)

// BuildError is the single failure a build reports. Column is empty when the
// fault is not tied to one column.
type BuildError struct {
	Entity string
	Column string
	Err    error
}

func (e *BuildError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("build %s record: %v", e.Entity, e.Err)
	}
	return fmt.Sprintf("build %s record: column %s: %v", e.Entity, e.Column, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

func errorf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
