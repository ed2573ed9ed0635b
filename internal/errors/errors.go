// Package errors defines the error taxonomy shared across deltastore's
// components: object storage, the transaction log, and the optimistic
// transaction manager.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an Error into one of the taxonomy buckets from the design.
type Kind int

const (
	// Unknown is the zero value; never intentionally returned.
	Unknown Kind = iota
	// NotFound indicates the requested object is absent.
	NotFound
	// AlreadyExists indicates a non-overwrite put collided with an existing object.
	AlreadyExists
	// Timeout indicates a facade deadline was exceeded.
	Timeout
	// Transport indicates a message was lost or dropped by partition/loss.
	Transport
	// ConcurrentModification indicates a transaction's read version was stale at commit.
	ConcurrentModification
	// InvalidArgument indicates a bad version, filename, or configuration value.
	InvalidArgument
	// IO indicates an underlying storage failure.
	IO
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case Timeout:
		return "Timeout"
	case Transport:
		return "Transport"
	case ConcurrentModification:
		return "ConcurrentModification"
	case InvalidArgument:
		return "InvalidArgument"
	case IO:
		return "IO"
	default:
		return "Unknown"
	}
}

// Error is a structured error carrying a Kind alongside a message and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NotFoundError builds the exact marker string external callers pattern-match
// on (see spec §4.3, §4.6, §4.7): "Failed to retrieve object: <key>".
func NotFoundError(key string) *Error {
	return New(NotFound, fmt.Sprintf("Failed to retrieve object: %s", key), nil)
}

func AlreadyExistsError(key string) *Error {
	return New(AlreadyExists, fmt.Sprintf("object already exists: %s", key), nil)
}

func TimeoutError(message string) *Error {
	return New(Timeout, message, nil)
}

func TransportError(message string) *Error {
	return New(Transport, message, nil)
}

func ConcurrentModificationError(readVersion, currentVersion int64) *Error {
	return New(ConcurrentModification,
		fmt.Sprintf("conflict detected: read version %d is stale, current version is %d", readVersion, currentVersion),
		nil)
}

func InvalidArgumentError(message string) *Error {
	return New(InvalidArgument, message, nil)
}

func IOError(message string, cause error) *Error {
	return New(IO, message, cause)
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns err's Kind, or Unknown if err is not a *Error (or is nil).
// Callers that need to carry a Kind across a boundary that only preserves
// strings (like the network wire protocol) use this to capture it first.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
