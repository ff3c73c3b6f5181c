package audit

import (
	"github.com/google/uuid"

	"github.com/StricklySoft/whisper-grc/pkg/models"
)

// Entity types named in audit events.
const (
	EntityOrganisation = "organisation"
	EntityUserAccount  = "user_account"
)

// OrganisationCreated describes the creation of org by actorID.
func OrganisationCreated(actorID uuid.UUID, org *models.Organisation) models.AuditEvent {
	return models.AuditEvent{
		OrganisationID: org.ID,
		ActorUserID:    actorRef(actorID),
		Action:         models.AuditOrganisationCreated,
		EntityType:     EntityOrganisation,
		EntityID:       org.ID.String(),
		Metadata:       map[string]any{"name": org.Name},
	}
}

// UserCreated describes the provisioning of user by actorID.
func UserCreated(actorID uuid.UUID, user *models.UserAccount) models.AuditEvent {
	var displayName any
	if user.DisplayName != "" {
		displayName = user.DisplayName
	}
	return models.AuditEvent{
		OrganisationID: user.OrganisationID,
		ActorUserID:    actorRef(actorID),
		Action:         models.AuditUserAccountCreated,
		EntityType:     EntityUserAccount,
		EntityID:       user.ID.String(),
		Metadata: map[string]any{
			"email":        user.Email,
			"display_name": displayName,
			"role":         string(user.Role),
		},
	}
}

func actorRef(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}
