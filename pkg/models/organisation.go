package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxOrganisationNameLength bounds Organisation.Name.
const MaxOrganisationNameLength = 255

// Organisation is a tenant. Every tenant-scoped record carries its ID.
type Organisation struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewOrganisation validates name and returns an organisation with a fresh
// ID. CreatedAt is left for the store to assign.
func NewOrganisation(name string) (*Organisation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("organisation name is required")
	}
	if len(name) > MaxOrganisationNameLength {
		return nil, errors.New("organisation name is too long")
	}
	return &Organisation{ID: uuid.New(), Name: name}, nil
}
