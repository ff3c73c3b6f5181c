// Package tenant resolves the organisation a request is scoped to.
//
// Every tenant-scoped request names its organisation in the
// X-Organisation-Id header. The value is parsed without any I/O; whether
// the caller may act in that organisation is decided later by the
// authorization gate.
package tenant

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
)

// HeaderOrganisationID carries the tenant identifier.
const HeaderOrganisationID = "X-Organisation-Id"

// Resolve returns the tenant named by h. An absent or blank header yields
// sserr.CodeTenantHeaderMissing; a value that is not a UUID yields
// sserr.CodeTenantHeaderInvalid. Both map to 400.
func Resolve(h http.Header) (uuid.UUID, error) {
	raw := strings.TrimSpace(h.Get(HeaderOrganisationID))
	if raw == "" {
		return uuid.Nil, sserr.New(sserr.CodeTenantHeaderMissing,
			"Missing "+HeaderOrganisationID+" header")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, sserr.Wrap(err, sserr.CodeTenantHeaderInvalid,
			"Invalid "+HeaderOrganisationID+" header")
	}
	return id, nil
}

// RequireSameOrganisation rejects a request whose path addresses an
// organisation other than its tenant.
func RequireSameOrganisation(pathOrganisationID, tenantID uuid.UUID) error {
	if pathOrganisationID != tenantID {
		return sserr.New(sserr.CodeCrossTenantDenied, "Cross-tenant access denied")
	}
	return nil
}
