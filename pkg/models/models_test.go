package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Role
// ---------------------------------------------------------------------------

func TestParseRole(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"", RoleMember, false},
		{"org_owner", RoleOwner, false},
		{"owner", RoleOwner, false},
		{"ADMIN", RoleAdmin, false},
		{" member ", RoleMember, false},
		{"auditor", RoleAuditor, false},
		{"superuser", "", true},
		{"org_auditor", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoles_AllValid(t *testing.T) {
	t.Parallel()
	for _, r := range Roles() {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, Role("guest").Valid())
}

// ---------------------------------------------------------------------------
// Organisation
// ---------------------------------------------------------------------------

func TestNewOrganisation(t *testing.T) {
	t.Parallel()
	org, err := NewOrganisation("  Acme GRC ")
	require.NoError(t, err)
	assert.Equal(t, "Acme GRC", org.Name)
	assert.NotEqual(t, uuid.Nil, org.ID)

	_, err = NewOrganisation("   ")
	assert.Error(t, err)
	_, err = NewOrganisation(strings.Repeat("x", MaxOrganisationNameLength+1))
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// UserAccount
// ---------------------------------------------------------------------------

func TestNewUserAccount(t *testing.T) {
	t.Parallel()
	org := uuid.New()

	u, err := NewUserAccount(org, " ada@example.com ", "Ada", "")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, RoleMember, u.Role)
	assert.True(t, u.BelongsTo(org))
	assert.False(t, u.BelongsTo(uuid.New()))
}

func TestNewUserAccount_Invalid(t *testing.T) {
	t.Parallel()
	org := uuid.New()
	tests := []struct {
		name    string
		org     uuid.UUID
		email   string
		display string
		role    Role
	}{
		{"nil org", uuid.Nil, "a@example.com", "A", RoleAdmin},
		{"empty email", org, "", "A", RoleAdmin},
		{"bad email", org, "not-an-email", "A", RoleAdmin},
		{"long email", org, strings.Repeat("a", MaxEmailLength) + "@x.io", "A", RoleAdmin},
		{"long display", org, "a@example.com", strings.Repeat("x", MaxDisplayNameLength+1), RoleAdmin},
		{"unknown role", org, "a@example.com", "A", Role("root")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewUserAccount(tt.org, tt.email, tt.display, tt.role)
			assert.Error(t, err)
		})
	}
}

func TestUserAccount_BelongsToNil(t *testing.T) {
	t.Parallel()
	var u *UserAccount
	assert.False(t, u.BelongsTo(uuid.New()))
}

func TestAuditEvent_JSONActorNull(t *testing.T) {
	t.Parallel()
	ev := AuditEvent{OrganisationID: uuid.New(), Action: AuditOrganisationCreated}
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"actor_user_id":null`)
}
