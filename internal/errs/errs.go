// Package errs defines the error taxonomy every port boundary in the
// memory engine reports through (spec §7). Domain code never panics for
// expected failure modes; panics are reserved for INTERNAL invariant
// violations that indicate a bug rather than a caller mistake.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed.
type Kind int

const (
	Unknown Kind = iota
	NotFound
	PermissionDenied
	InvalidArgument
	ResourceExhausted
	DeadlineExceeded
	Unavailable
	Conflict
	Internal
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NOT_FOUND"
	case PermissionDenied:
		return "PERMISSION_DENIED"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case ResourceExhausted:
		return "RESOURCE_EXHAUSTED"
	case DeadlineExceeded:
		return "DEADLINE_EXCEEDED"
	case Unavailable:
		return "UNAVAILABLE"
	case Conflict:
		return "CONFLICT"
	case Internal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// Error is the typed error every exposed port operation returns on failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error, wrapping the cause with %w-compatible chaining.
func New(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// NotFoundf builds a NOT_FOUND error.
func NotFoundf(op, format string, args ...any) *Error {
	return New(op, NotFound, fmt.Errorf(format, args...))
}

// InvalidArgumentf builds an INVALID_ARGUMENT error.
func InvalidArgumentf(op, format string, args ...any) *Error {
	return New(op, InvalidArgument, fmt.Errorf(format, args...))
}

// PermissionDeniedf builds a PERMISSION_DENIED error.
func PermissionDeniedf(op, format string, args ...any) *Error {
	return New(op, PermissionDenied, fmt.Errorf(format, args...))
}

// Conflictf builds a CONFLICT error.
func Conflictf(op, format string, args ...any) *Error {
	return New(op, Conflict, fmt.Errorf(format, args...))
}

// Internalf builds an INTERNAL error.
func Internalf(op, format string, args ...any) *Error {
	return New(op, Internal, fmt.Errorf(format, args...))
}

// Unavailablef builds an UNAVAILABLE error, for transient backend failures.
func Unavailablef(op, format string, args ...any) *Error {
	return New(op, Unavailable, fmt.Errorf(format, args...))
}

// ResourceExhaustedf builds a RESOURCE_EXHAUSTED error, e.g. layer capacity.
func ResourceExhaustedf(op, format string, args ...any) *Error {
	return New(op, ResourceExhausted, fmt.Errorf(format, args...))
}

// DeadlineExceededf builds a DEADLINE_EXCEEDED error.
func DeadlineExceededf(op, format string, args ...any) *Error {
	return New(op, DeadlineExceeded, fmt.Errorf(format, args...))
}

// Wrap attaches op/kind to an existing error without discarding its chain.
func Wrap(op string, kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return New(op, kind, err)
}

// GetKind extracts the Kind from err if it (or something it wraps) is an
// *Error; otherwise it returns Unknown.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err's Kind matches k.
func Is(err error, k Kind) bool {
	return GetKind(err) == k
}
