package errors

import (
	"errors"
	"fmt"
)

// New creates an Error with no cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches code and message to err. Wrap(nil, ...) returns nil.
//
//	row := pool.QueryRow(ctx, sql, id)
//	if err := row.Scan(&u.ID); err != nil {
//	    return sserr.Wrap(err, sserr.CodeInternalDatabase, "failed to load user")
//	}
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// FromError returns err as an *Error. Errors that are not already
// structured are wrapped as CodeInternal with a generic message.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, CodeInternal, "an unexpected error occurred")
}
