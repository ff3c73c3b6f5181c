package models

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Field limits for UserAccount.
const (
	MaxEmailLength       = 320
	MaxDisplayNameLength = 255
)

// UserAccount is a user provisioned inside one organisation. Accounts are
// created by administrators; identities that only exist at the identity
// provider have no account and are refused.
type UserAccount struct {
	ID             uuid.UUID `json:"id"`
	OrganisationID uuid.UUID `json:"organisation_id"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"display_name"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewUserAccount validates its inputs and returns an account with a fresh
// ID. The display name is optional; an empty role becomes DefaultRole.
func NewUserAccount(organisationID uuid.UUID, email, displayName string, role Role) (*UserAccount, error) {
	if organisationID == uuid.Nil {
		return nil, errors.New("organisation id is required")
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errors.New("email is required")
	}
	if len(email) > MaxEmailLength {
		return nil, errors.New("email is too long")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("email %q is not a valid address", email)
	}
	displayName = strings.TrimSpace(displayName)
	if len(displayName) > MaxDisplayNameLength {
		return nil, errors.New("display name is too long")
	}
	if role == "" {
		role = DefaultRole
	}
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	return &UserAccount{
		ID:             uuid.New(),
		OrganisationID: organisationID,
		Email:          email,
		DisplayName:    displayName,
		Role:           role,
	}, nil
}

// BelongsTo reports whether the account is provisioned in organisationID.
func (u *UserAccount) BelongsTo(organisationID uuid.UUID) bool {
	return u != nil && u.OrganisationID == organisationID
}
