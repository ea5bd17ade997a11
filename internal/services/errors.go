// internal/services/errors.go
package services

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNotFound       ErrorKind = "NotFound"
	KindInvalidState   ErrorKind = "InvalidState"
	KindExpired        ErrorKind = "Expired"
	KindDomainConflict ErrorKind = "DomainConflict"
	KindMalformedInput ErrorKind = "MalformedInput"
	KindUnauthorized   ErrorKind = "Unauthorized"
	KindConflict       ErrorKind = "Conflict"
	KindForbidden      ErrorKind = "Forbidden"
)

// Error is a domain failure the caller can act on. Infrastructure failures are
// never an *Error; they are wrapped with %w and surface as unavailable.
type Error struct {
	Kind    ErrorKind
	Message string
	// Domain is set on DomainConflict to the domain the license is bound to.
	Domain string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrExpired) works for
// every expiry failure regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound       = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidState   = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrExpired        = &Error{Kind: KindExpired, Message: "expired"}
	ErrDomainConflict = &Error{Kind: KindDomainConflict, Message: "domain conflict"}
	ErrMalformedInput = &Error{Kind: KindMalformedInput, Message: "malformed input"}
	ErrUnauthorized   = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrConflict       = &Error{Kind: KindConflict, Message: "conflict"}
	ErrForbidden      = &Error{Kind: KindForbidden, Message: "forbidden"}
)

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the domain kind of err, if it is one.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
