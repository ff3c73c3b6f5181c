package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
	"github.com/StricklySoft/whisper-grc/pkg/models"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return sserr.Wrap(err, sserr.CodeValidation, "Request body too large")
		}
		return sserr.Wrap(err, sserr.CodeValidationFormat, "Malformed JSON body")
	}
	return nil
}

type organisationOut struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func newOrganisationOut(o *models.Organisation) organisationOut {
	return organisationOut{ID: o.ID, Name: o.Name, CreatedAt: o.CreatedAt}
}

type userAccountOut struct {
	ID             uuid.UUID   `json:"id"`
	OrganisationID uuid.UUID   `json:"organisation_id"`
	Email          string      `json:"email"`
	DisplayName    *string     `json:"display_name"`
	Role           models.Role `json:"role"`
	CreatedAt      time.Time   `json:"created_at"`
}

func newUserAccountOut(u *models.UserAccount) userAccountOut {
	out := userAccountOut{
		ID:             u.ID,
		OrganisationID: u.OrganisationID,
		Email:          u.Email,
		Role:           u.Role,
		CreatedAt:      u.CreatedAt,
	}
	if u.DisplayName != "" {
		name := u.DisplayName
		out.DisplayName = &name
	}
	return out
}

// nullable returns nil for "" so the field encodes as JSON null.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
