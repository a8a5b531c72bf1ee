package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an engine failure for policy decisions: agent-level
// kinds drop a single contribution, persistence errors are retried next
// cycle, cost and invariant errors stop the session.
type ErrorKind string

const (
	KindTransport    ErrorKind = "transport"
	KindParse        ErrorKind = "parse"
	KindValidation   ErrorKind = "validation"
	KindTimeout      ErrorKind = "timeout"
	KindPersistence  ErrorKind = "persistence"
	KindInvariant    ErrorKind = "invariant"
	KindCostExceeded ErrorKind = "cost_exceeded"
)

// EngineError is the typed error carried across package boundaries.
type EngineError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *EngineError) Unwrap() error { return e.Err }

// NewError builds an EngineError wrapping an optional cause.
func NewError(kind ErrorKind, msg string, cause error) *EngineError {
	return &EngineError{Kind: kind, Msg: msg, Err: cause}
}

// KindOf extracts the error kind, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// AbortsSession reports whether err must stop the session rather than drop a
// single contribution.
func AbortsSession(err error) bool {
	switch KindOf(err) {
	case KindInvariant, KindCostExceeded:
		return true
	}
	return false
}
