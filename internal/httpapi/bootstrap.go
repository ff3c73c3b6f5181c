package httpapi

import (
	"net/http"

	"github.com/StricklySoft/whisper-grc/pkg/audit"
	"github.com/StricklySoft/whisper-grc/pkg/auth"
	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
	"github.com/StricklySoft/whisper-grc/pkg/models"
	"github.com/StricklySoft/whisper-grc/pkg/store"
)

type bootstrapRequest struct {
	OrganisationName string `json:"organisation_name"`
	AdminEmail       string `json:"admin_email"`
	AdminDisplayName string `json:"admin_display_name"`
}

type bootstrapResponse struct {
	Organisation organisationOut `json:"organisation"`
	AdminUser    userAccountOut  `json:"admin_user"`
}

// postBootstrap creates an organisation and its owner. It is the only
// unauthenticated write; both records and their audit events commit
// together.
func (a *api) postBootstrap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req bootstrapRequest
	if err := decodeJSON(w, r, &req); err != nil {
		auth.WriteError(w, a.logger, err)
		return
	}

	org, err := models.NewOrganisation(req.OrganisationName)
	if err != nil {
		auth.WriteError(w, a.logger, sserr.Wrap(err, sserr.CodeValidation, err.Error()))
		return
	}
	admin, err := models.NewUserAccount(org.ID, req.AdminEmail, req.AdminDisplayName, models.RoleOwner)
	if err != nil {
		auth.WriteError(w, a.logger, sserr.Wrap(err, sserr.CodeValidation, err.Error()))
		return
	}

	err = a.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateOrganisation(ctx, org); err != nil {
			return err
		}
		if err := tx.CreateUser(ctx, admin); err != nil {
			if sserr.IsConflict(err) {
				return sserr.Wrap(err, sserr.CodeConflictAlreadyExists, "Admin email already exists for organisation")
			}
			return err
		}
		rec := a.audit.In(tx)
		if err := rec.Record(ctx, audit.OrganisationCreated(admin.ID, org)); err != nil {
			return err
		}
		return rec.Record(ctx, audit.UserCreated(admin.ID, admin))
	})
	if err != nil {
		auth.WriteError(w, a.logger, err)
		return
	}

	a.logger.InfoContext(ctx, "organisation bootstrapped",
		"organisation_id", org.ID.String(),
		"user_id", admin.ID.String())
	auth.WriteJSON(w, http.StatusOK, bootstrapResponse{
		Organisation: newOrganisationOut(org),
		AdminUser:    newUserAccountOut(admin),
	})
}
