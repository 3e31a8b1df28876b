package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code is the stable, client-visible error identifier.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeNoSlot        Code = "NO_SLOT_AVAILABLE"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Metadata maps a code onto its HTTP rendering.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
	CodeUnauthorized:  {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
	CodeForbidden:     {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
	CodeNotFound:      {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
	CodeConflict:      {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected"},
	CodeStateConflict: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true},
	// a slot may free up at any moment, so clients can retry
	CodeNoSlot:     {HTTPStatus: http.StatusConflict, Retryable: true, PublicMessage: "No slots available"},
	CodeRateLimit:  {HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded"},
	CodeInternal:   {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"},
	CodeDependency: {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true},
}

// MetadataFor returns the rendering for code. Unknown codes render as internal.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// StatusOf returns the HTTP status for the outermost typed error in err.
func StatusOf(err error) int {
	if typed := As(err); typed != nil {
		return MetadataFor(typed.code).HTTPStatus
	}
	return http.StatusInternalServerError
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

// Errorf builds an error whose message is formatted. A %w verb also records
// the cause.
func Errorf(code Code, format string, args ...any) *Error {
	formatted := fmt.Errorf(format, args...)
	return &Error{code: code, message: formatted.Error(), cause: stdErrors.Unwrap(formatted)}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
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

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether any typed error in err's chain carries code.
func Is(err error, code Code) bool {
	for err != nil {
		var typed *Error
		if !stdErrors.As(err, &typed) {
			return false
		}
		if typed.code == code {
			return true
		}
		err = typed.cause
	}
	return false
}

// As returns the outermost typed error in err's chain, or nil.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
