// Package errs attaches a code and a user-facing message to errors that
// reach the command line. The code picks the exit status.
package errs

import (
	"errors"
)

// Code is an application error code.
type Code string

const (
	InvalidArgument    Code = "invalid_argument"    // bad flag, argument or config value
	NotFound           Code = "not_found"           // unknown note or folder id
	FailedPrecondition Code = "failed_precondition" // state does not allow it, e.g. S3 unset
	Unavailable        Code = "unavailable"         // storage cannot be opened or written
	Internal           Code = "internal"
)

var exitCodes = map[Code]int{
	InvalidArgument:    2,
	NotFound:           3,
	FailedPrecondition: 4,
	Unavailable:        5,
}

// Error is a coded application error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a coded error with message.
func New(code Code, message string) error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a coded error with message and cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// CodeOf returns the error code, defaulting to internal.
func CodeOf(err error) Code {
	if err == nil {
		return Internal
	}
	var coded *Error
	if errors.As(err, &coded) {
		if coded.Code == "" {
			return Internal
		}
		return coded.Code
	}
	return Internal
}

// MessageOf returns a user-facing error message.
// Uncoded errors print as "internal error" so raw driver errors and file
// paths stay out of the terminal.
func MessageOf(err error) string {
	if err == nil {
		return string(Internal)
	}
	var coded *Error
	if errors.As(err, &coded) && coded.Message != "" {
		return coded.Message
	}
	return "internal error"
}

// ExitCode maps an error code to a process exit status. Internal and
// unknown codes exit 1.
func ExitCode(code Code) int {
	if n, ok := exitCodes[code]; ok {
		return n
	}
	return 1
}

// IsCoded reports whether err carries an *Error anywhere in its chain.
// Uncoded errors are bugs or raw driver failures and are worth logging.
func IsCoded(err error) bool {
	var coded *Error
	return errors.As(err, &coded)
}
