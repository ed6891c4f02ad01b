// Package ferr defines the error kinds shared across the indexer core.
//
// Every fallible operation in the store, scanner, backup manager, watcher
// and control plane returns an error that can be classified into one of a
// small set of kinds via [Kind] / [Is]. Callers that need to distinguish
// "not indexed" from "database corrupt" from "bad config" match on the
// kind rather than string-matching error text.
package ferr

import (
	"errors"
	"fmt"
)

// Kind classifies the broad category of failure.
type Kind int

const (
	// Other is the zero value: an error that doesn't fit a more specific
	// kind, or one that originated outside this package.
	Other Kind = iota
	// Io indicates a filesystem failure (stat, read, walk).
	Io
	// Database indicates a schema or query failure.
	Database
	// Watch indicates a failure from the OS notification layer.
	Watch
	// InvalidState indicates an illegal state transition or a poisoned
	// shared-state lock.
	InvalidState
	// NotFound indicates a missing file, view, or backup.
	NotFound
	// Config indicates a bad path or environment.
	Config
)

func (k Kind) String() string {
	switch k {
	case Io:
		return "io"
	case Database:
		return "database"
	case Watch:
		return "watch"
	case InvalidState:
		return "invalid_state"
	case NotFound:
		return "not_found"
	case Config:
		return "config"
	default:
		return "other"
	}
}

// Error is a kinded error wrapping an underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error of the given kind with a formatted message.
func New(k Kind, format string, args ...any) error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an existing error, with additional context.
func Wrap(k Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err carries the given kind.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
