package httpapi

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/StricklySoft/whisper-grc/pkg/audit"
	"github.com/StricklySoft/whisper-grc/pkg/auth"
	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
	"github.com/StricklySoft/whisper-grc/pkg/models"
	"github.com/StricklySoft/whisper-grc/pkg/store"
)

// maxAuditListLimit caps the limit query parameter.
const maxAuditListLimit = 500

type whoamiResponse struct {
	AuthMode       string  `json:"auth_mode"`
	Subject        *string `json:"subject"`
	Email          *string `json:"email"`
	UserID         *string `json:"user_id"`
	OrganisationID string  `json:"organisation_id"`
}

func (a *api) getWhoami(w http.ResponseWriter, _ *http.Request, tenantID uuid.UUID, actor auth.Actor) {
	resp := whoamiResponse{
		AuthMode:       actor.Mode().String(),
		Subject:        nullable(actor.Subject()),
		Email:          nullable(actor.Email()),
		OrganisationID: tenantID.String(),
	}
	if id, ok := actor.UserID(); ok {
		resp.UserID = nullable(id.String())
	}
	auth.WriteJSON(w, http.StatusOK, resp)
}

func (a *api) getOrganisation(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	org, err := a.store.GetOrganisation(r.Context(), p.OrganisationID)
	if err != nil {
		auth.WriteError(w, a.logger, err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, newOrganisationOut(org))
}

type createOrganisationRequest struct {
	Name string `json:"name"`
}

type createOrganisationResponse struct {
	Organisation organisationOut `json:"organisation"`
	Owner        userAccountOut  `json:"owner"`
}

// createOrganisation creates an organisation on behalf of a provisioned
// account. The caller's email is provisioned as the new organisation's
// owner so the caller can reach it; both events are attributed to the
// caller's existing account.
func (a *api) createOrganisation(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	ctx := r.Context()
	var req createOrganisationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		auth.WriteError(w, a.logger, err)
		return
	}
	org, err := models.NewOrganisation(req.Name)
	if err != nil {
		auth.WriteError(w, a.logger, sserr.Wrap(err, sserr.CodeValidation, err.Error()))
		return
	}
	owner, err := models.NewUserAccount(org.ID, p.Account.Email, p.Account.DisplayName, models.RoleOwner)
	if err != nil {
		auth.WriteError(w, a.logger, sserr.Wrap(err, sserr.CodeInternal, "Internal server error"))
		return
	}

	err = a.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateOrganisation(ctx, org); err != nil {
			return err
		}
		if err := tx.CreateUser(ctx, owner); err != nil {
			return err
		}
		rec := a.audit.In(tx)
		if err := rec.Record(ctx, audit.OrganisationCreated(p.Account.ID, org)); err != nil {
			return err
		}
		return rec.Record(ctx, audit.UserCreated(p.Account.ID, owner))
	})
	if err != nil {
		auth.WriteError(w, a.logger, err)
		return
	}

	a.logger.InfoContext(ctx, "organisation created",
		"organisation_id", org.ID.String(),
		"created_by", p.Account.ID.String())
	auth.WriteJSON(w, http.StatusOK, createOrganisationResponse{
		Organisation: newOrganisationOut(org),
		Owner:        newUserAccountOut(owner),
	})
}

func (a *api) listUsers(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	users, err := a.store.ListUsers(r.Context(), p.OrganisationID)
	if err != nil {
		auth.WriteError(w, a.logger, err)
		return
	}
	out := make([]userAccountOut, 0, len(users))
	for _, u := range users {
		out = append(out, newUserAccountOut(u))
	}
	auth.WriteJSON(w, http.StatusOK, out)
}

type createUserRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// createUser provisions an account in the principal's organisation. Only
// owners may grant the owner role.
func (a *api) createUser(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	ctx := r.Context()
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		auth.WriteError(w, a.logger, err)
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		auth.WriteError(w, a.logger, sserr.Wrap(err, sserr.CodeValidation, err.Error()))
		return
	}
	if role == models.RoleOwner && p.Account.Role != models.RoleOwner {
		auth.WriteError(w, a.logger, sserr.New(sserr.CodeAuthorizationDenied, "Only owners may grant the owner role"))
		return
	}
	user, err := models.NewUserAccount(p.OrganisationID, req.Email, req.DisplayName, role)
	if err != nil {
		auth.WriteError(w, a.logger, sserr.Wrap(err, sserr.CodeValidation, err.Error()))
		return
	}

	err = a.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		return a.audit.In(tx).Record(ctx, audit.UserCreated(p.Account.ID, user))
	})
	if err != nil {
		auth.WriteError(w, a.logger, err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, newUserAccountOut(user))
}

func (a *api) listAuditEvents(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	limit := store.DefaultAuditListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxAuditListLimit {
			auth.WriteError(w, a.logger, sserr.Newf(sserr.CodeValidation,
				"limit must be between 1 and %d", maxAuditListLimit))
			return
		}
		limit = n
	}
	events, err := a.store.ListAuditEvents(r.Context(), p.OrganisationID, limit)
	if err != nil {
		auth.WriteError(w, a.logger, err)
		return
	}
	if events == nil {
		events = []models.AuditEvent{}
	}
	auth.WriteJSON(w, http.StatusOK, events)
}
