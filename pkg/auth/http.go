package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
)

// AuthorizedHandler serves a request whose principal passed the gate.
type AuthorizedHandler func(w http.ResponseWriter, r *http.Request, p *Principal)

// ActorHandler serves a request with a resolved tenant and actor but no
// account or role check.
type ActorHandler func(w http.ResponseWriter, r *http.Request, tenantID uuid.UUID, actor Actor)

// RequirePermission wraps next so it only runs for principals granted
// action. Rejections are written with WriteError.
func (g *Gate) RequirePermission(action Action, next AuthorizedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := g.ResolveAuthorizedActor(r.Context(), g.request(r), action)
		if err != nil {
			g.reject(w, r, err)
			return
		}
		next(w, r, p)
	})
}

// RequireActor wraps next so it only runs once the actor is resolved.
func (g *Gate) RequireActor(next ActorHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, actor, err := g.ResolveActor(r.Context(), g.request(r))
		if err != nil {
			g.reject(w, r, err)
			return
		}
		next(w, r, tenantID, actor)
	})
}

func (g *Gate) request(r *http.Request) Request {
	return Request{Header: r.Header, PathOrganisationID: g.pathOrg(r)}
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, err error) {
	if sserr.IsAuthentication(err) && g.resolver.Mode() == ModeOIDC {
		w.Header().Set("WWW-Authenticate", `Bearer realm="whisper"`)
	}
	g.logger.InfoContext(r.Context(), "request rejected",
		"method", r.Method,
		"path", r.URL.Path,
		"code", sserr.GetCode(err),
		"error", err)
	WriteError(w, g.logger, err)
}

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

// publicMessages replaces messages for codes whose internal text could
// help an attacker distinguish failure causes.
var publicMessages = map[sserr.Code]string{
	sserr.CodeAuthenticationInvalid: "Invalid bearer token",
	sserr.CodeAuthenticationExpired: "Invalid bearer token",
	sserr.CodeBearerTokenInvalid:    "Invalid bearer token",
	sserr.CodeBearerTokenMissing:    "Missing bearer token",
	sserr.CodeKeyFetchFailed:        "Invalid bearer token",
}

// WriteError writes err as a JSON ErrorResponse with the status of its
// code. Errors that are not *sserr.Error, and any 5xx, are reported
// generically and logged.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	e := sserr.FromError(err)
	status := e.HTTPStatus()
	if e.Code == sserr.CodeKeyFetchFailed {
		status = http.StatusUnauthorized
	}

	body := ErrorResponse{Code: string(e.Code), Message: e.Message}
	if msg, ok := publicMessages[e.Code]; ok {
		body.Message = msg
	}
	if action, ok := e.Details["action"].(string); ok {
		body.Action = action
	}
	if status >= http.StatusInternalServerError {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("request failed", "code", e.Code, "error", err)
		body.Message = "Internal server error"
	}

	WriteJSON(w, status, body)
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
