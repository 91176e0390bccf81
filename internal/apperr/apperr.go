// Package apperr implements the two-tier error taxonomy of spec.md §7:
// an outward-facing Code mapped to RPC status, and an inward-facing Kind
// describing which subsystem produced the failure. Every error the core
// surfaces past its own boundary is an *Error; internal packages are free
// to return plain wrapped errors as long as the service layer translates
// them at the edge.
package apperr

import (
	"errors"
	"fmt"
)

// Code is the user-facing classification, mapped directly to an RPC
// status code by the transport layer.
type Code int

const (
	// CodeInternal covers any backend, bus, codec, or task-manager failure.
	CodeInternal Code = iota
	// CodeInvalidArgument covers identifier parsing failures and rejected
	// inputs such as addFriend(u, u).
	CodeInvalidArgument
	// CodeNotFound is implicit in "no such user" from getUserByName.
	CodeNotFound
)

func (c Code) String() string {
	switch c {
	case CodeInternal:
		return "internal"
	case CodeInvalidArgument:
		return "invalid_argument"
	case CodeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Kind is the internal subcategory carried by CodeInternal errors, so
// logs and metrics can distinguish failure origin without parsing strings.
type Kind int

const (
	// KindNone applies to non-internal codes (InvalidArgument, NotFound).
	KindNone Kind = iota
	// KindBus covers connection, publish, or subscription failure.
	KindBus
	// KindDecoding covers codec error subcategories (internal/codec).
	KindDecoding
	// KindColumnStore covers column-store query or row-decode failures.
	KindColumnStore
	// KindRelational covers relational query or row-decode failures.
	KindRelational
	// KindInput marks an error that originated in a caller-supplied
	// upstream stream and is surfaced as-is, not recovered.
	KindInput
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBus:
		return "bus"
	case KindDecoding:
		return "decoding"
	case KindColumnStore:
		return "column_store"
	case KindRelational:
		return "relational"
	case KindInput:
		return "input"
	default:
		return "unknown"
	}
}

// Error is the taxonomy's carrier type. Cause may be nil for errors that
// exist purely to signal a Code (e.g. a rejected self-friendship).
type Error struct {
	Code  Code
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Kind)
	}
	if e.Kind == KindNone {
		return fmt.Sprintf("%s: %v", e.Code, e.Cause)
	}
	return fmt.Sprintf("%s[%s]: %v", e.Code, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports equality by Code and Kind, so callers can write
// errors.Is(err, apperr.New(apperr.CodeNotFound, apperr.KindNone))
// against a sentinel built with New.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == other.Code && e.Kind == other.Kind
}

// New builds an Error with no wrapped cause.
func New(code Code, kind Kind) *Error {
	return &Error{Code: code, Kind: kind}
}

// Wrap builds an internal Error of the given Kind around cause.
func Wrap(kind Kind, cause error) *Error {
	return &Error{Code: CodeInternal, Kind: kind, Cause: cause}
}

// InvalidArgument builds a CodeInvalidArgument error around cause.
func InvalidArgument(cause error) *Error {
	return &Error{Code: CodeInvalidArgument, Kind: KindNone, Cause: cause}
}

// NotFound builds a CodeNotFound error around cause.
func NotFound(cause error) *Error {
	return &Error{Code: CodeNotFound, Kind: KindNone, Cause: cause}
}

// CodeOf extracts the Code of err, defaulting to CodeInternal for any
// error that isn't one of ours — an unclassified failure is still a
// backend failure from the caller's point of view.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
