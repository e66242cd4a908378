package errors

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrorTypeBackendUnavailable ErrorType = "BACKEND_UNAVAILABLE"
	ErrorTypeSnapshot           ErrorType = "SNAPSHOT"
	ErrorTypeParse              ErrorType = "PARSE"
	ErrorTypeCheckout           ErrorType = "CHECKOUT"
	ErrorTypeRevertIO           ErrorType = "REVERT_IO"
	ErrorTypeNotFound           ErrorType = "NOT_FOUND"
)

// Error is a failure of a history operation on one file.
type Error struct {
	Type ErrorType
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether any error in err's chain is an *Error of type t.
func Is(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

func BackendUnavailable(backend string) *Error {
	return &Error{
		Type: ErrorTypeBackendUnavailable,
		Op:   "probe",
		Err:  fmt.Errorf("%s not found on PATH", backend),
	}
}

func Snapshot(op, path string, err error) *Error {
	return &Error{Type: ErrorTypeSnapshot, Op: op, Path: path, Err: err}
}

func Checkout(path, token string, err error) *Error {
	return &Error{Type: ErrorTypeCheckout, Op: "checkout " + token, Path: path, Err: err}
}

func RevertIO(op, path string, err error) *Error {
	return &Error{Type: ErrorTypeRevertIO, Op: op, Path: path, Err: err}
}

func Parse(op, value string, err error) *Error {
	return &Error{Type: ErrorTypeParse, Op: op, Path: value, Err: err}
}

func NotFound(op, path string, err error) *Error {
	return &Error{Type: ErrorTypeNotFound, Op: op, Path: path, Err: err}
}
