// Package domainerrors carries the error taxonomy shared by services and transports.
//
// Services return *Error values tagged with a Code; transports translate the code
// into a status (see pkg/platform/httputil). Infrastructure facts returned by stores
// live in pkg/platform/sentinel and are translated into codes by services.
package domainerrors

import (
	"errors"
)

// Code identifies a class of failure.
type Code string

// Ledger rule violations.
const (
	CodeUnauthorized      Code = "unauthorized"
	CodeWrongState        Code = "wrong_state"
	CodeNotFound          Code = "not_found"
	CodeNotRegistered     Code = "not_registered"
	CodeInvalidInput      Code = "invalid_input"
	CodeInvalidAmount     Code = "invalid_amount"
	CodeSelfReceipt       Code = "self_receipt"
	CodeFutureDate        Code = "future_date"
	CodeExpired           Code = "expired"
	CodeAlreadyRegistered Code = "already_registered"
)

// Transport and infrastructure failures.
const (
	CodeBadRequest      Code = "bad_request"
	CodeValidation      Code = "validation_error"
	CodeUnauthenticated Code = "unauthenticated"
	CodeTimeout         Code = "timeout"
	CodeRateLimited     Code = "rate_limit_exceeded"
	CodeInternal        Code = "internal_error"
)

// Error is a coded domain error. Err keeps the underlying cause for logging; it is
// never rendered to clients.
type Error struct {
	Code    Code
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

// New creates a coded error without an underlying cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// As extracts the outermost *Error from the chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CodeOf returns the code of the outermost *Error, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost coded error in the chain carries code.
func HasCode(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}
