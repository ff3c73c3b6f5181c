package errors

import "errors"

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetCode returns the code of the first *Error in err's chain, or "".
func GetCode(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// HasCode reports whether the outermost *Error in err's chain has code.
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

// HasCodeInChain reports whether any *Error in err's chain has code. Use
// it when a cause is wrapped by an outer structured error.
func HasCodeInChain(err error, code Code) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code == code {
			return true
		}
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				if HasCodeInChain(inner, code) {
					return true
				}
			}
			return false
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		default:
			return false
		}
	}
	return false
}

func hasCategory(err error, category string) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == category
}

// IsValidation reports a VAL_xxx error.
func IsValidation(err error) bool { return hasCategory(err, "VAL") }

// IsAuthentication reports an AUTH_xxx error.
func IsAuthentication(err error) bool { return hasCategory(err, "AUTH") }

// IsAuthorization reports an AUTHZ_xxx error.
func IsAuthorization(err error) bool { return hasCategory(err, "AUTHZ") }

// IsNotFound reports an NF_xxx error.
func IsNotFound(err error) bool { return hasCategory(err, "NF") }

// IsConflict reports a CONF_xxx error.
func IsConflict(err error) bool { return hasCategory(err, "CONF") }

// IsInternal reports an INT_xxx error.
func IsInternal(err error) bool { return hasCategory(err, "INT") }

// IsUnavailable reports an UNAVAIL_xxx error.
func IsUnavailable(err error) bool { return hasCategory(err, "UNAVAIL") }

// IsTimeout reports a TIMEOUT_xxx error.
func IsTimeout(err error) bool { return hasCategory(err, "TIMEOUT") }
