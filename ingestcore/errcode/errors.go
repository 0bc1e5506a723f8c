// Package errcode wraps github.com/pkg/errors with a Code so callers can
// match the error kinds of spec.md §7 (Configuration, IO, Parse,
// TypeAdaptation, Attach) without string comparison.
package errcode

import (
	"github.com/pkg/errors"
)

// Code identifies which of the fixed error kinds an error belongs to.
type Code string

const (
	// Configuration errors are raised before any phase-1 task is
	// dispatched and are always fatal.
	Configuration Code = "configuration"
	// IO errors come from a failed open/read/write/mmap and are fatal
	// at the task, surfacing at the next phase barrier.
	IO Code = "io"
	// Parse errors are per-line lexer failures; never fatal.
	Parse Code = "parse"
	// TypeAdaptation errors come from a column adapter rejecting a
	// field; handling is governed by the configured Atomicity.
	TypeAdaptation Code = "type-adaptation"
	// Attach errors happen per-partition during the final phase and
	// are logged, never fatal to the rest of the run.
	Attach Code = "attach"
	// Uncoded is the default code for errors that don't originate in
	// one of the above categories.
	Uncoded Code = "uncoded"
)

// codedError pairs an error with a Code. Two codedErrors are Is-equal if
// their codes match, regardless of message; callers outside the package
// match codes through this package's Is and CodeOf.
type codedError struct {
	code    Code
	message string
	cause   error
}

func (e codedError) Error() string { return e.message }

// Unwrap returns the error Wrap was given, or nil for New/Newf errors.
func (e codedError) Unwrap() error { return e.cause }

func (e codedError) Is(target error) bool {
	t, ok := target.(codedError)
	return ok && t.code == e.code
}

// New returns a new error of the given code.
func New(code Code, message string) error {
	return errors.WithStack(codedError{code: code, message: message})
}

// Newf is New with fmt-style formatting.
func Newf(code Code, format string, args ...interface{}) error {
	return errors.WithStack(codedError{code: code, message: errors.Errorf(format, args...).Error()})
}

// Wrap attaches a code and a message to err, keeping err in the chain that
// errors.Is and errors.As walk, and records a stack via pkg/errors.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(codedError{code: code, message: message + ": " + err.Error(), cause: err})
}

// Wrapf is Wrap with fmt-style formatting of the message.
func Wrapf(err error, code Code, format string, args ...interface{}) error {
	return Wrap(err, code, errors.Errorf(format, args...).Error())
}

// Is reports whether err (or anything it wraps) carries the given code.
func Is(err error, code Code) bool {
	return errors.Is(err, codedError{code: code})
}

// CodeOf returns the Code of err if it (or something it wraps) is a
// codedError, and Uncoded otherwise.
func CodeOf(err error) Code {
	var ce codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return Uncoded
}

// Cause unwraps err down to its root cause, as pkg/errors.Cause does.
func Cause(err error) error {
	return errors.Cause(err)
}
