package errors

import (
	"errors"
	"fmt"
)

// Standard errors
var (
	// ErrNotFound is returned when an id-based lookup or mutation targets a
	// record that does not exist
	ErrNotFound = errors.New("memory record not found")

	// ErrValidation is returned when the input is structurally invalid
	ErrValidation = errors.New("invalid input")

	// ErrEmbedding is returned when the embedding provider fails or returns a
	// vector with the wrong dimensionality
	ErrEmbedding = errors.New("embedding provider error")

	// ErrTimeout is returned when a blocking collaborator call exceeded its bound
	ErrTimeout = errors.New("operation timed out")

	// ErrStorage is returned when the durable store fails, including connectivity loss
	ErrStorage = errors.New("durable store unavailable")
)

// New returns an error with the given message.
// This is a convenience function that wraps errors.New
func New(text string) error {
	return errors.New(text)
}

// Wrap classifies err under one of the taxonomy sentinels. Both the kind and
// the original cause stay matchable with Is.
func Wrap(err error, kind error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// Wrapf creates a classified error from a formatted message.
func Wrapf(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{kind}, args...)...)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience function that wraps errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target, and if so, sets
// target to that error value and returns true. Otherwise, it returns false.
// This is a convenience function that wraps errors.As
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
