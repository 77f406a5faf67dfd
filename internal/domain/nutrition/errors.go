package nutrition

import (
	"errors"
	"fmt"
)

// ErrValidation is the sentinel kind for malformed profile input.
var ErrValidation = errors.New("invalid profile")

// ValidationError names the offending field. It matches ErrValidation via errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation.Error(), e.Field, e.Reason)
}

// Unwrap exposes the sentinel kind.
func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
