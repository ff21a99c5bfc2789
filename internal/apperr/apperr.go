// Package apperr defines the error taxonomy shared by services and the HTTP
// boundary. Services return *Error values (possibly wrapped); the boundary
// maps the Kind to a status code and renders Message.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthentication
	KindForbidden
	KindNotFound
	KindValidation
	KindDependency
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindDependency:
		return "dependency"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	// Fields holds per-field validation messages. Only set for KindValidation.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Messages used by more than one caller.
const (
	MsgIncorrectCredentials = "Incorrect credentials"
	MsgAccountInactive      = "Account is inactive"
	MsgUserNotFound         = "User not found"
	MsgValidationFailure    = "Validation Failure"
	MsgEmailFailure         = "E-mail Failure"
	MsgInvalidActivation    = "This account is either active or the token is invalid"
	MsgUnauthorizedUpdate   = "unauthorized user update"
	MsgUnauthorizedDelete   = "unauthorized user delete"
	MsgTooManyRequests      = "Too many requests"
)

func Authentication() *Error {
	return &Error{Kind: KindAuthentication, Message: MsgIncorrectCredentials}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Validation builds a validation failure. A nil fields map yields a plain 400
// without a validationErrors body.
func Validation(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func Dependency(msg string, err error) *Error {
	return &Error{Kind: KindDependency, Message: msg, Err: err}
}

func RateLimited() *Error {
	return &Error{Kind: KindRateLimited, Message: MsgTooManyRequests}
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the Kind of err, KindInternal when err is not classified.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
