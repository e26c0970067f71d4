package ipc

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedRequest     = errors.New("malformed request")
	ErrUnknownKind          = errors.New("unknown request kind")
	ErrHandlerNotRegistered = errors.New("no handler registered")
)

// Error codes carried in a failed Response
const (
	CodeMalformed   = "malformed_request"
	CodeUnknownKind = "unknown_kind"
	CodeNotFound    = "not_found"
	CodeInvalid     = "invalid"
	CodeUnavailable = "unavailable"
	CodeInternal    = "internal"
)

// HandlerError lets a handler choose the code reported to the caller
type HandlerError struct {
	Code string
	Err  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

func NotFound(err error) error {
	return &HandlerError{Code: CodeNotFound, Err: err}
}

func Invalid(err error) error {
	return &HandlerError{Code: CodeInvalid, Err: err}
}

func Unavailable(err error) error {
	return &HandlerError{Code: CodeUnavailable, Err: err}
}

func errorCode(err error) string {
	var handlerErr *HandlerError
	switch {
	case errors.As(err, &handlerErr):
		return handlerErr.Code
	case errors.Is(err, ErrMalformedRequest):
		return CodeMalformed
	case errors.Is(err, ErrUnknownKind):
		return CodeUnknownKind
	case errors.Is(err, ErrHandlerNotRegistered):
		return CodeUnavailable
	default:
		return CodeInternal
	}
}
