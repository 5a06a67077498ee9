// Package errors carries the typed application error used between services
// and the HTTP layer. Services pick a Code; the handler side decides status,
// wording and whether details reach the client from the Code's Policy.
package errors

import (
	stdErrors "errors"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeInvalidState Code = "INVALID_STATE"
	CodeIdempotency  Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit    Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"
)

// Policy describes how a Code is surfaced to API clients.
type Policy struct {
	Status int
	// Retryable hints that the same request may succeed later.
	Retryable bool
	// Fallback is sent when the error carries no message of its own, and
	// always for codes whose message is not Public.
	Fallback string
	// Public codes expose the error's own message.
	Public bool
	// ShowDetails exposes Details() in the response body.
	ShowDetails bool
}

var policies = map[Code]Policy{
	CodeValidation:   {Status: http.StatusBadRequest, Fallback: "validation failed", Public: true, ShowDetails: true},
	CodeUnauthorized: {Status: http.StatusUnauthorized, Fallback: "authentication required", Public: true},
	CodeForbidden:    {Status: http.StatusForbidden, Fallback: "access denied", Public: true},
	CodeNotFound:     {Status: http.StatusNotFound, Fallback: "resource not found", Public: true},
	CodeConflict:     {Status: http.StatusConflict, Fallback: "conflict detected", Public: true, ShowDetails: true},
	CodeInvalidState: {Status: http.StatusBadRequest, Fallback: "operation not allowed in current state", Public: true, ShowDetails: true},
	CodeIdempotency:  {Status: http.StatusConflict, Fallback: "idempotency key reused", Public: true, ShowDetails: true},
	CodeRateLimit:    {Status: http.StatusTooManyRequests, Fallback: "rate limit exceeded", Public: true},
	CodeInternal:     {Status: http.StatusInternalServerError, Retryable: true, Fallback: "internal server error"},
	CodeDependency:   {Status: http.StatusServiceUnavailable, Retryable: true, Fallback: "dependency unavailable", ShowDetails: true},
}

// PolicyFor returns the policy of code. Unknown codes are treated as
// CodeInternal.
func PolicyFor(code Code) Policy {
	if p, ok := policies[code]; ok {
		return p
	}
	return policies[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches cause to a new error. A nil cause behaves like New.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets structured details (usually a map keyed by field or id)
// and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code carried by err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	return As(err).Code()
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
