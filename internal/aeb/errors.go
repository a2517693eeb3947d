package aeb

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned (wrapped) for malformed scene descriptors.
	// Nothing downstream of validation runs when it is returned.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternalFault marks an inconsistency inside the pipeline. A decision
	// is never fabricated when it is returned.
	ErrInternalFault = errors.New("internal fault")
)

// InputError describes one rejected field of a scene descriptor.
type InputError struct {
	Index  int // object index within the scene, -1 for scene-level fields
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid input: object %d: %s: %s", e.Index, e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match any InputError.
func (e *InputError) Unwrap() error { return ErrInvalidInput }

func inputErrorf(index int, field, format string, args ...interface{}) *InputError {
	return &InputError{Index: index, Field: field, Reason: fmt.Sprintf(format, args...)}
}
