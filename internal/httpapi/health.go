package httpapi

import (
	"net/http"

	"github.com/StricklySoft/whisper-grc/pkg/auth"
	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
)

type statusResponse struct {
	Status string `json:"status"`
}

func (a *api) getHealth(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		if err := a.health.Health(r.Context()); err != nil {
			auth.WriteJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "unavailable"})
			return
		}
	}
	auth.WriteJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (a *api) getHealthDB(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		a.logger.ErrorContext(r.Context(), "database health check failed", "error", err)
		auth.WriteJSON(w, http.StatusInternalServerError, auth.ErrorResponse{
			Code:    string(sserr.CodeUnavailableDependency),
			Message: "Database connection failed",
		})
		return
	}
	auth.WriteJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}
