// Package errors defines the structured error type shared by every Whisper
// package. Each error carries a machine-readable [Code] whose category
// prefix determines the HTTP status returned to callers.
//
// # Categories
//
//	VAL_xxx     - malformed request input (400)
//	AUTH_xxx    - no usable identity (401)
//	AUTHZ_xxx   - identity known but not allowed (403)
//	NF_xxx      - missing resource (404)
//	CONF_xxx    - state conflict (409)
//	INT_xxx     - server fault or misconfiguration (500)
//	UNAVAIL_xxx - dependency unavailable (503)
//	TIMEOUT_xxx - dependency timed out (504)
//
// # Usage
//
//	if _, err := uuid.Parse(raw); err != nil {
//	    return sserr.Wrap(err, sserr.CodeTenantHeaderInvalid, "organisation header is not a UUID")
//	}
//
//	if sserr.IsAuthentication(err) {
//	    // 401
//	}
//
// Callers import the package as sserr to avoid shadowing the standard
// library errors package.
package errors
