// pkg/core/errors.go
package core

import "errors"

var (
	// ErrNotFound is returned when an id or name does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTarget is returned when a timeline command names neither or
	// both of its possible owners.
	ErrInvalidTarget = errors.New("invalid timeline target")
	// ErrValidation is returned for malformed input or a uniqueness violation.
	ErrValidation = errors.New("validation failed")
)

// ErrorKind is the wire name of an error category.
type ErrorKind string

const (
	KindNotFound      ErrorKind = "not_found"
	KindInvalidTarget ErrorKind = "invalid_target"
	KindValidation    ErrorKind = "validation"
	KindInternal      ErrorKind = "internal"
)

// KindOf classifies err. Nil returns the empty kind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidTarget):
		return KindInvalidTarget
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindInternal
	}
}
