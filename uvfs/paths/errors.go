package paths

import (
	"errors"
)

var (
	// ErrInvalidArgument is returned when a required argument is nil or empty.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrMalformedLockURI is returned when a URI does not have the shape the
	// lock rewrite expects.
	ErrMalformedLockURI = errors.New("malformed lock uri")
)

// ArgumentError names the argument that was rejected.
type ArgumentError struct {
	Field  string
	Reason string
	kind   error
}

var _ error = (*ArgumentError)(nil)

func invalidArgument(field, reason string) error {
	return &ArgumentError{Field: field, Reason: reason, kind: ErrInvalidArgument}
}

func malformedLockURI(field, reason string) error {
	return &ArgumentError{Field: field, Reason: reason, kind: ErrMalformedLockURI}
}

func (err *ArgumentError) Error() string {
	if err == nil {
		return "(*ArgumentError)(nil)"
	}
	message := err.kind.Error() + ": " + err.Field
	if err.Reason != "" {
		message += ": " + err.Reason
	}
	return message
}

func (err *ArgumentError) Unwrap() error {
	return err.kind
}
