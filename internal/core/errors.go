package core

import (
	"errors"
	"fmt"
)

// Error categories shared by every stage of a batch run
var (
	// ErrParse indicates a malformed header, date or JSON line
	ErrParse = errors.New("parse error")

	// ErrUnknownShape indicates an unrecognized content type or envelope pattern
	ErrUnknownShape = errors.New("unknown shape")

	// ErrResolutionConflict indicates an ambiguous or unknown sender identity
	ErrResolutionConflict = errors.New("sender resolution conflict")

	// ErrPrecondition indicates that an expected local attachment file is missing
	ErrPrecondition = errors.New("precondition violation")

	// ErrTransport indicates a failed transport call
	ErrTransport = errors.New("transport error")
)

// ErrorKind names an error category in the run report
type ErrorKind string

const (
	KindParse              ErrorKind = "parse_error"
	KindUnknownShape       ErrorKind = "unknown_shape"
	KindResolutionConflict ErrorKind = "resolution_conflict"
	KindPrecondition       ErrorKind = "precondition_violation"
	KindTransport          ErrorKind = "transport_error"
	KindInternal           ErrorKind = "internal_error"
)

// KindOf maps an error onto its report category
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrUnknownShape):
		return KindUnknownShape
	case errors.Is(err, ErrResolutionConflict):
		return KindResolutionConflict
	case errors.Is(err, ErrPrecondition):
		return KindPrecondition
	case errors.Is(err, ErrTransport):
		return KindTransport
	default:
		return KindInternal
	}
}

// ItemError is a failure isolated to a single message, envelope or delivery
type ItemError struct {
	Item string
	Kind ErrorKind
	Err  error
}

// NewItemError creates an ItemError, deriving the kind from err
func NewItemError(item string, err error) ItemError {
	return ItemError{
		Item: item,
		Kind: KindOf(err),
		Err:  err,
	}
}

// Error implements the error interface
func (e ItemError) Error() string {
	return fmt.Sprintf("%s [%s]: %v", e.Item, e.Kind, e.Err)
}

// Unwrap returns the underlying error
func (e ItemError) Unwrap() error {
	return e.Err
}
