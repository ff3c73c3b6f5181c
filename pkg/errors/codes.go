package errors

// Code is a stable, machine-readable error identifier of the form
// CATEGORY_NNN. Codes are never reused once assigned.
type Code string

const (
	// Validation errors (VAL_xxx) - HTTP 400.

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"
	// CodeValidationRequired indicates a required field is missing.
	CodeValidationRequired Code = "VAL_002"
	// CodeValidationFormat indicates a field has an invalid format.
	CodeValidationFormat Code = "VAL_003"
	// CodeTenantHeaderMissing indicates the organisation header was absent
	// or empty.
	CodeTenantHeaderMissing Code = "VAL_010"
	// CodeTenantHeaderInvalid indicates the organisation header is not a
	// UUID.
	CodeTenantHeaderInvalid Code = "VAL_011"
	// CodeActorHeaderInvalid indicates the dev-mode actor header is not a
	// UUID.
	CodeActorHeaderInvalid Code = "VAL_012"

	// Authentication errors (AUTH_xxx) - HTTP 401.

	// CodeAuthentication indicates a general authentication failure.
	CodeAuthentication Code = "AUTH_001"
	// CodeAuthenticationExpired indicates the bearer token has expired.
	CodeAuthenticationExpired Code = "AUTH_002"
	// CodeAuthenticationInvalid indicates the bearer token failed
	// verification.
	CodeAuthenticationInvalid Code = "AUTH_003"
	// CodeActorHeaderMissing indicates dev mode found no actor header.
	CodeActorHeaderMissing Code = "AUTH_010"
	// CodeBearerTokenMissing indicates no Authorization header was sent.
	CodeBearerTokenMissing Code = "AUTH_011"
	// CodeBearerTokenInvalid indicates the Authorization header is not a
	// usable bearer credential, or the token could not be verified.
	CodeBearerTokenInvalid Code = "AUTH_012"
	// CodeActorUnknown indicates the resolved actor carries no user id or
	// names a user that does not exist.
	CodeActorUnknown Code = "AUTH_013"

	// Authorization errors (AUTHZ_xxx) - HTTP 403.

	// CodeAuthorization indicates a general authorization failure.
	CodeAuthorization Code = "AUTHZ_001"
	// CodeAuthorizationDenied indicates the actor's role does not grant the
	// requested action.
	CodeAuthorizationDenied Code = "AUTHZ_002"
	// CodeCrossTenantDenied indicates the request addressed an organisation
	// other than the actor's tenant.
	CodeCrossTenantDenied Code = "AUTHZ_010"
	// CodeUserNotProvisioned indicates a verified token whose identity has
	// no account in the tenant.
	CodeUserNotProvisioned Code = "AUTHZ_011"

	// Not found errors (NF_xxx) - HTTP 404.

	// CodeNotFound indicates a general not found error.
	CodeNotFound Code = "NF_001"
	// CodeNotFoundUser indicates the requested user account does not exist.
	CodeNotFoundUser Code = "NF_002"
	// CodeNotFoundOrganisation indicates the requested organisation does not
	// exist.
	CodeNotFoundOrganisation Code = "NF_003"

	// Conflict errors (CONF_xxx) - HTTP 409.

	// CodeConflict indicates a general conflict error.
	CodeConflict Code = "CONF_001"
	// CodeConflictAlreadyExists indicates the resource already exists.
	CodeConflictAlreadyExists Code = "CONF_002"

	// Internal errors (INT_xxx) - HTTP 500.

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"
	// CodeInternalDatabase indicates a database operation failed.
	CodeInternalDatabase Code = "INT_002"
	// CodeInternalConfiguration indicates invalid configuration.
	CodeInternalConfiguration Code = "INT_003"
	// CodeAuthModeUnsupported indicates the configured authentication mode
	// is not one of the known modes.
	CodeAuthModeUnsupported Code = "INT_010"

	// Unavailable errors (UNAVAIL_xxx) - HTTP 503.

	// CodeUnavailable indicates a general service unavailable error.
	CodeUnavailable Code = "UNAVAIL_001"
	// CodeUnavailableDependency indicates a dependent service is unavailable.
	CodeUnavailableDependency Code = "UNAVAIL_002"
	// CodeKeyFetchFailed indicates the identity provider's discovery or key
	// set document could not be retrieved. It is never returned to clients
	// as-is; the actor resolver reports it as CodeBearerTokenInvalid.
	CodeKeyFetchFailed Code = "UNAVAIL_010"

	// Timeout errors (TIMEOUT_xxx) - HTTP 504.

	// CodeTimeout indicates a general timeout error.
	CodeTimeout Code = "TIMEOUT_001"
	// CodeTimeoutDatabase indicates a database operation timed out.
	CodeTimeoutDatabase Code = "TIMEOUT_002"
)

// String returns the code as a plain string.
func (c Code) String() string {
	return string(c)
}

// Category returns the prefix before the first underscore ("VAL", "AUTH").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
