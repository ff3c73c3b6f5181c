package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEvent records a state change or a security decision within an
// organisation. Events are append-only.
type AuditEvent struct {
	ID             uuid.UUID      `json:"id"`
	OrganisationID uuid.UUID      `json:"organisation_id"`
	ActorUserID    uuid.NullUUID  `json:"actor_user_id"`
	Action         string         `json:"action"`
	EntityType     string         `json:"entity_type"`
	EntityID       string         `json:"entity_id"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Audit actions written by this service.
const (
	AuditOrganisationCreated = "organisation.created"
	AuditUserAccountCreated  = "user_account.created"
	AuditAccessDenied        = "access.denied"
)
