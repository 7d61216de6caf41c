// Package perr defines the stable error taxonomy surfaced across MemoryPilot's
// tool layer, mirroring the wrap-with-context idiom the storage and service
// layers use elsewhere in this repo.
package perr

import (
	"errors"
	"fmt"
)

// Kind is one of the stable, machine-readable error categories a caller can
// switch on via data.kind in a JSON-RPC error response.
type Kind string

const (
	InvalidArgument Kind = "InvalidArgument"
	NotFound        Kind = "NotFound"
	Duplicate       Kind = "Duplicate"
	Conflict        Kind = "Conflict"
	Storage         Kind = "Storage"
	Corruption      Kind = "Corruption"
	Unavailable     Kind = "Unavailable"
	Internal        Kind = "Internal"
)

// Error is a taxonomy-tagged error. It wraps an underlying cause the way the
// rest of this repo wraps errors with fmt.Errorf("<Func>: %w", err), except
// the tag survives across that wrapping via errors.As.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an existing error, preserving it as the cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err, defaulting to Internal when err does
// not carry one.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return Internal
}

// Is reports whether err (or a wrapped cause) is tagged with kind.
func Is(err error, kind Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}
