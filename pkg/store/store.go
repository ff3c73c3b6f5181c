// Package store defines data access for organisations, user accounts and
// audit events. The memory package backs tests and local development; the
// postgres package backs production.
//
// Lookups that match nothing return an *sserr.Error with a not-found code:
// sserr.CodeNotFoundOrganisation for organisations and
// sserr.CodeNotFoundUser for user accounts. A second account with the same
// email in one organisation fails with sserr.CodeConflictAlreadyExists.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/StricklySoft/whisper-grc/pkg/models"
)

// Organisations reads and writes tenants.
type Organisations interface {
	CreateOrganisation(ctx context.Context, org *models.Organisation) error
	GetOrganisation(ctx context.Context, id uuid.UUID) (*models.Organisation, error)
}

// Users reads and writes user accounts. It satisfies auth.UserDirectory.
type Users interface {
	CreateUser(ctx context.Context, user *models.UserAccount) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.UserAccount, error)
	FindUserByEmail(ctx context.Context, organisationID uuid.UUID, email string) (*models.UserAccount, error)
	ListUsers(ctx context.Context, organisationID uuid.UUID) ([]*models.UserAccount, error)
}

// AuditLog appends and lists audit events.
type AuditLog interface {
	AppendAuditEvent(ctx context.Context, ev models.AuditEvent) error
	ListAuditEvents(ctx context.Context, organisationID uuid.UUID, limit int) ([]models.AuditEvent, error)
}

// Tx is the view of the store available inside a transaction.
type Tx interface {
	Organisations
	Users
	AuditLog
}

// Store is the full data access surface.
type Store interface {
	Tx

	// WithTx runs fn atomically. Writes made through the Tx are visible
	// to others only if fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Ping reports whether the backing database is reachable.
	Ping(ctx context.Context) error
}

// DefaultAuditListLimit caps ListAuditEvents when limit is not positive.
const DefaultAuditListLimit = 100
