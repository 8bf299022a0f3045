package apperrors

import (
	"errors"
	"net/http"
)

// Kind classifies failures returned by services to transport layer
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindUnauthorized
	KindUpload
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindUpload:
		return "upload"
	default:
		return "internal"
	}
}

// Error is a typed service failure
// Message is safe to show to the client, Err keeps the cause for logs and errors.Is
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode returns HTTP status code matching the error kind
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindUpload:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Conflict(msg string, err error) *Error {
	return &Error{Kind: KindConflict, Message: msg, Err: err}
}

func NotFound(msg string, err error) *Error {
	return &Error{Kind: KindNotFound, Message: msg, Err: err}
}

func Unauthorized(msg string, err error) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg, Err: err}
}

func Upload(msg string, err error) *Error {
	return &Error{Kind: KindUpload, Message: msg, Err: err}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of err or KindInternal if err is not *Error
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
