// Package apperr defines the error taxonomy shared by the storefront domain
// packages. Adapters map a Kind to their own status codes.
package apperr

import (
	"github.com/go-faster/errors"
)

// Kind classifies a domain error.
type Kind int

const (
	// KindInternal is any failure not explicitly classified.
	KindInternal Kind = iota
	// KindNotFound means a referenced entity does not exist.
	KindNotFound
	// KindInvalid means the request is well-formed but violates a business rule.
	KindInvalid
	// KindConflict means a transaction was aborted by a concurrent writer and
	// may succeed when retried.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalid:
		return "invalid_request"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified domain error with a client-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound returns a KindNotFound error.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Invalid returns a KindInvalid error.
func Invalid(msg string) *Error {
	return &Error{Kind: KindInvalid, Message: msg}
}

// Conflict wraps err as a retryable KindConflict error.
func Conflict(err error) *Error {
	return &Error{Kind: KindConflict, Message: "transaction conflict, retry the request", Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the client-facing message of the first *Error in err's
// chain. Unclassified errors yield a generic message so internals never leak.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

// Retryable reports whether err was caused by a transaction conflict.
func Retryable(err error) bool {
	return KindOf(err) == KindConflict
}
