package schedule

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a professional, rule, override, hold or appointment that
// does not exist or does not belong to the caller. Routes map it to 404.
var ErrNotFound = errors.New("schedule: not found")

// ErrConflict marks a write that would double-book an interval.
var ErrConflict = errors.New("schedule: interval conflict")

// ValidationError rejects malformed configuration before any computation.
// The engine never silently repairs invalid input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "schedule: " + e.Reason
}

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
