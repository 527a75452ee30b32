package errors

import (
	"errors"
	"fmt"
)

// Error couples a taxonomy code with an underlying cause.
type Error struct {
	Code Code
	Err  error
}

// E builds an Error from a code and a formatted message.
func E(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a code to an existing error. It returns nil when err is nil.
func Wrap(code Code, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CodeOf extracts the taxonomy code from err, or CodeUnknown when err carries
// none.
func CodeOf(err error) Code {
	var engineErr *Error
	if errors.As(err, &engineErr) && engineErr != nil {
		return engineErr.Code
	}
	return CodeUnknown
}
