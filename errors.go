// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/bassosimone/nop/blob/main/errclassifier.go
// Adapted from: original_source/rd-interface/src/error.rs (Error enum, ErrorWithContext)

package rdnet

import (
	"errors"
	"fmt"

	"github.com/rdproxy/rdnet/errclass"
)

// Kind is a closed taxonomy of error categories. Callers compare Kind values
// with [errors.Is] against the sentinel errors below, or call [KindOf].
type Kind int

// The kinds recognized by the engine.
const (
	KindNotImplemented Kind = iota
	KindNotEnabled
	KindNotFound
	KindAddrNotAvailable
	KindAddrInUse
	KindConnectionRefused
	KindTimeout
	KindAbortedByUser
	KindOther
)

// String implements [fmt.Stringer].
func (k Kind) String() string {
	switch k {
	case KindNotImplemented:
		return "not implemented"
	case KindNotEnabled:
		return "not enabled"
	case KindNotFound:
		return "not found"
	case KindAddrNotAvailable:
		return "address not available"
	case KindAddrInUse:
		return "address in use"
	case KindConnectionRefused:
		return "connection refused"
	case KindTimeout:
		return "timeout"
	case KindAbortedByUser:
		return "aborted by user"
	default:
		return "other"
	}
}

// Error is the error type every Net capability returns. It carries a
// [Kind], an optional Name (populated for [KindNotFound]), and an optional
// wrapped cause.
type Error struct {
	Kind  Kind
	Name  string
	Cause error
}

var _ error = (*Error)(nil)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Kind == KindNotFound && e.Name != "":
		return fmt.Sprintf("not found: %s", e.Name)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
	default:
		return e.Kind.String()
	}
}

// Unwrap supports [errors.Is] / [errors.As] over the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, so that
// sentinels like [ErrNotImplemented] compare equal to any *Error carrying
// that Kind regardless of Name/Cause.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// NewError builds an *Error of the given kind wrapping cause (which may be nil).
func NewError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// NotFound builds a [KindNotFound] error naming the missing entry.
func NotFound(name string) *Error {
	return &Error{Kind: KindNotFound, Name: name}
}

// Other wraps an arbitrary cause as [KindOther].
func Other(cause error) *Error {
	return &Error{Kind: KindOther, Cause: cause}
}

// Sentinels for [errors.Is] comparisons against a bare Kind, e.g.:
//
//	if errors.Is(err, rdnet.ErrConnectionRefused) { ... }
var (
	ErrNotImplemented     = &Error{Kind: KindNotImplemented}
	ErrNotEnabled         = &Error{Kind: KindNotEnabled}
	ErrAddrNotAvailable   = &Error{Kind: KindAddrNotAvailable}
	ErrAddrInUse          = &Error{Kind: KindAddrInUse}
	ErrConnectionRefused  = &Error{Kind: KindConnectionRefused}
	ErrTimeout            = &Error{Kind: KindTimeout}
	ErrAbortedByUser      = &Error{Kind: KindAbortedByUser}
)

// KindOf extracts the Kind from err if it is (or wraps) an *Error,
// otherwise classifies it via [errclass.Classify] and returns [KindOther]
// (or [KindTimeout] for recognized timeouts).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errclass.Classify(err) == errclass.TimedOut {
		return KindTimeout
	}
	return KindOther
}

// errorWithContext chains a human-readable message in front of a cause,
// mirroring original_source/rd-interface/src/error.rs's ErrorWithContext
// Display impl: "<context>\nCaused by:\n<cause>".
type errorWithContext struct {
	context string
	cause   error
}

func (e *errorWithContext) Error() string {
	return fmt.Sprintf("%s\nCaused by:\n%s", e.context, e.cause)
}

func (e *errorWithContext) Unwrap() error {
	return e.cause
}

// WithContext prepends a message to err, producing a chained error whose
// Error() string reproduces the original's "Caused by:" display and whose
// Unwrap() chain still reaches the original cause for [errors.Is]/[errors.As].
func WithContext(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &errorWithContext{context: msg, cause: err}
}

// WithContextf is [WithContext] with fmt.Sprintf-style formatting.
func WithContextf(err error, format string, args ...any) error {
	return WithContext(err, fmt.Sprintf(format, args...))
}
