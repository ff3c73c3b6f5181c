// Package fixtures provides shared test identities and factories for
// organisations and user accounts.
package fixtures

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/whisper-grc/pkg/models"
)

// Organisation and account values reused across store and API tests.
const (
	OrganisationName    = "Acme Assurance"
	AltOrganisationName = "Globex Risk"

	OwnerEmail  = "ada@acme.test"
	MemberEmail = "linus@acme.test"
)

// Audience is the aud claim expected by token tests.
const Audience = "whisper-api"

// NewOrganisation returns a valid, unsaved organisation.
func NewOrganisation(t testing.TB, name string) *models.Organisation {
	t.Helper()
	org, err := models.NewOrganisation(name)
	require.NoError(t, err)
	return org
}

// NewUser returns a valid, unsaved account in org with the given role.
func NewUser(t testing.TB, org *models.Organisation, email string, role models.Role) *models.UserAccount {
	t.Helper()
	user, err := models.NewUserAccount(org.ID, email, "", role)
	require.NoError(t, err)
	return user
}
