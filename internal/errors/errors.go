// Package errors provides the coded error type shared by every dtsm component.
//
// Callers branch on the Code rather than on message text:
//
//	if errors.Is(err, errors.ErrCodeAmbiguous) {
//	    // ask the user for a longer specifier
//	}
//
// Causes are preserved, so the standard library's errors.Is and errors.As keep
// working through an *Error.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a machine-readable error kind.
type Code string

const (
	// Resolution errors abort an operation before anything is written.
	ErrCodeNotFound               Code = "NOT_FOUND"
	ErrCodeAmbiguous              Code = "AMBIGUOUS_SPECIFIER"
	ErrCodeDependencyUnresolvable Code = "DEPENDENCY_UNRESOLVABLE"

	// Repository access.
	ErrCodeRemoteUnavailable Code = "REMOTE_UNAVAILABLE"
	ErrCodeOffline           Code = "OFFLINE_MODE_VIOLATION"

	// Lock file.
	ErrCodeLockfileMalformed Code = "LOCKFILE_MALFORMED"
	ErrCodeAlreadyExists     Code = "ALREADY_EXISTS"

	ErrCodeIO           Code = "IO_FAILURE"
	ErrCodeInvalidInput Code = "INVALID_INPUT"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates an Error around an existing cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is makes errors.Is match on Code when the target is an *Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Is reports whether any error in err's tree is an *Error with the given code.
func Is(err error, code Code) bool {
	return errors.Is(err, &Error{Code: code})
}

// GetCode returns the code of the outermost *Error in err's chain, or "".
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns err's text with the code prefix of every *Error in
// the chain removed. Context added by fmt.Errorf around an *Error is kept,
// and the branches of a joined error are separated by "; ".
func UserMessage(err error) string {
	switch e := err.(type) {
	case nil:
		return ""
	case *Error:
		if e.Cause != nil {
			return e.Message + ": " + UserMessage(e.Cause)
		}
		return e.Message
	case interface{ Unwrap() []error }:
		branches := e.Unwrap()
		texts := make([]string, len(branches))
		msgs := make([]string, len(branches))
		for i, b := range branches {
			texts[i] = b.Error()
			msgs[i] = UserMessage(b)
		}
		if err.Error() != strings.Join(texts, "\n") {
			return err.Error()
		}
		return strings.Join(msgs, "; ")
	case interface{ Unwrap() error }:
		inner := e.Unwrap()
		if inner == nil {
			return err.Error()
		}
		prefix, ok := strings.CutSuffix(err.Error(), inner.Error())
		if !ok {
			return err.Error()
		}
		return prefix + UserMessage(inner)
	}
	return err.Error()
}
