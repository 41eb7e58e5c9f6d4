package domain

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine readable class of an Error
type Kind string

const (
	KindValidation         Kind = "VALIDATION_ERROR"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindInvalidToken       Kind = "INVALID_TOKEN"
	KindForbidden          Kind = "FORBIDDEN"
	KindNotFound           Kind = "NOT_FOUND"
	KindDuplicateCode      Kind = "DUPLICATE_CODE"
	KindCodeSpaceExhausted Kind = "CODE_SPACE_EXHAUSTED"
	KindDuplicateEmail     Kind = "DUPLICATE_EMAIL"
	KindStorageUnavailable Kind = "STORAGE_UNAVAILABLE"
	KindInternal           Kind = "INTERNAL"
)

// Error carries a Kind and a human readable message.
// Two errors match under errors.Is when their kinds are equal.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError creates an Error of the given kind
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind and message to an underlying error
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first Error in err's chain, or KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the message of the first Error in err's chain
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

var (
	ErrValidation         = NewError(KindValidation, "invalid input")
	ErrUnauthorized       = NewError(KindUnauthorized, "unauthorized")
	ErrInvalidToken       = NewError(KindInvalidToken, "invalid token")
	ErrForbidden          = NewError(KindForbidden, "forbidden")
	ErrNotFound           = NewError(KindNotFound, "not found")
	ErrDuplicateCode      = NewError(KindDuplicateCode, "short code already exists")
	ErrCodeSpaceExhausted = NewError(KindCodeSpaceExhausted, "unable to allocate a unique short code")
	ErrDuplicateEmail     = NewError(KindDuplicateEmail, "user already exists")
	ErrStorageUnavailable = NewError(KindStorageUnavailable, "storage unavailable")
)
