package tabular

import (
	"errors"
	"fmt"
)

var ErrMalformedInput = errors.New("malformed tabular input")

// MalformedInputError tells that a tab-separated text cannot be read as a record set.
type MalformedInputError struct {
	Reason string
}

func malformed(format string, args ...any) *MalformedInputError {
	return &MalformedInputError{Reason: fmt.Sprintf(format, args...)}
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformedInput, e.Reason)
}

func (e *MalformedInputError) Unwrap() error {
	return ErrMalformedInput
}
