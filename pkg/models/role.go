package models

import (
	"fmt"
	"strings"
)

// Role is the per-organisation role of a user account. The string values
// are the persisted representation.
type Role string

const (
	// RoleOwner may perform every action, including ones added later.
	RoleOwner Role = "org_owner"
	// RoleAdmin manages users and all GRC records.
	RoleAdmin Role = "org_admin"
	// RoleMember maintains risks, incidents and evidence.
	RoleMember Role = "org_member"
	// RoleAuditor has read-only access.
	RoleAuditor Role = "auditor"
)

// DefaultRole is assigned when an account is created without a role.
const DefaultRole = RoleMember

// Roles lists every role, most privileged first.
func Roles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleMember, RoleAuditor}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleAuditor:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole accepts the persisted form ("org_admin") or the short form
// ("admin"), case-insensitively. An empty string yields DefaultRole.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultRole, nil
	}
	if r := Role(s); r.Valid() {
		return r, nil
	}
	if r := Role("org_" + s); r.Valid() {
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}
