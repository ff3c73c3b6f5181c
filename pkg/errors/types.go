package errors

import (
	"fmt"
	"maps"
	"net/http"
)

// Error is the structured error returned by Whisper packages. Values are
// treated as immutable; the With* methods return copies.
type Error struct {
	// Code is the machine-readable error code.
	Code Code

	// Message is safe to show to API clients. It must not contain
	// credentials, token contents or internal addresses.
	Message string

	// Cause is the underlying error, if any. It is logged but never
	// serialised to clients.
	Cause error

	// Details carries structured context such as the denied action.
	Details map[string]any
}

var categoryStatus = map[string]int{
	"VAL":     http.StatusBadRequest,
	"AUTH":    http.StatusUnauthorized,
	"AUTHZ":   http.StatusForbidden,
	"NF":      http.StatusNotFound,
	"CONF":    http.StatusConflict,
	"INT":     http.StatusInternalServerError,
	"UNAVAIL": http.StatusServiceUnavailable,
	"TIMEOUT": http.StatusGatewayTimeout,
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause so errors.Is and errors.As traverse the chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the code category to an HTTP status. Unknown categories
// map to 500.
func (e *Error) HTTPStatus() int {
	if status, ok := categoryStatus[e.Code.Category()]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WithDetail returns a copy of e with key set to value in Details.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	maps.Copy(details, e.Details)
	details[key] = value
	return &Error{Code: e.Code, Message: e.Message, Cause: e.Cause, Details: details}
}

// WithCause returns a copy of e with the given cause.
func (e *Error) WithCause(cause error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Cause: cause, Details: e.Details}
}

// Format implements fmt.Formatter. %+v includes details and the cause chain.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "Error{Code: %q, Message: %q", e.Code, e.Message)
			if len(e.Details) > 0 {
				fmt.Fprintf(s, ", Details: %v", e.Details)
			}
			if e.Cause != nil {
				fmt.Fprintf(s, ", Cause: %+v", e.Cause)
			}
			fmt.Fprint(s, "}")
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
