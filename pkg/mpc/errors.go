// Package mpc holds the shared pieces of the protocol engine: the error
// taxonomy, the run configuration, the Player channel contract and the
// per-thread session context.
package mpc

import (
	"errors"
	"fmt"
)

// Kind classifies the fatal faults of a protocol run.
// Every fault aborts the whole computation; protocols never retry or degrade,
// since resuming a cryptographic round without re-verifying all prior state
// can leak information or enable selective failure.
type Kind int

const (
	// KindSetup indicates an invalid configuration detected before any
	// protocol round started.
	KindSetup Kind = iota + 1
	// KindCommunication indicates a peer disconnect or malformed stream.
	KindCommunication
	// KindConsistency indicates detected tampering: a MAC mismatch, a
	// nonzero sacrifice residual, or stream desynchronization.
	KindConsistency
	// KindInsufficientPreprocessing indicates a buffer that could not be
	// refilled for the requested item kind.
	KindInsufficientPreprocessing
	// KindUnsupported indicates an operation a protocol variant does not
	// provide. It is reported at the call site, never silently substituted.
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindSetup:
		return "setup"
	case KindCommunication:
		return "communication"
	case KindConsistency:
		return "consistency"
	case KindInsufficientPreprocessing:
		return "insufficient preprocessing"
	case KindUnsupported:
		return "unsupported operation"
	default:
		return "unknown"
	}
}

// Error is the fatal error type propagated to the top of a computation.
type Error struct {
	Kind Kind
	err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("mpc: %s: %v", e.Kind, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// Is lets errors.Is match on bare kinds: errors.Is(err, &Error{Kind: k}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Errorf builds a fatal error of the given kind.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, err: fmt.Errorf(format, args...)}
}

// IsKind reports whether err carries the given fault kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
