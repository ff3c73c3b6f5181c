package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
)

// DevResolver trusts the X-Actor-User-Id and X-Actor-Email headers. Any
// caller can claim any identity, so it must never serve production traffic;
// Config.Validate refuses ModeDev when Production is set.
type DevResolver struct {
	logger  *slog.Logger
	metrics *Metrics
}

var _ ActorResolver = (*DevResolver)(nil)

// NewDevResolver logs a warning that header-trusting authentication is
// active.
func NewDevResolver(logger *slog.Logger, metrics *Metrics) *DevResolver {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("development authentication enabled: actor identity is taken from request headers",
		"auth_mode", ModeDev)
	return &DevResolver{logger: logger, metrics: metrics}
}

// Mode returns ModeDev.
func (r *DevResolver) Mode() Mode { return ModeDev }

func (r *DevResolver) sealed() {}

// ResolveActor reads the actor from headers. A missing user id header
// yields sserr.CodeActorHeaderMissing (401); a malformed one yields
// sserr.CodeActorHeaderInvalid (400).
func (r *DevResolver) ResolveActor(ctx context.Context, tenantID uuid.UUID, h http.Header) (Actor, error) {
	actor, err := r.resolve(h)
	r.metrics.resolution(ModeDev, err)
	if err != nil {
		return Actor{}, err
	}
	r.logger.InfoContext(ctx, "dev actor resolved",
		"auth_mode", ModeDev,
		"organisation_id", tenantID,
		"actor_user_id", actor.userID,
		"actor_email", actor.email)
	return actor, nil
}

func (r *DevResolver) resolve(h http.Header) (Actor, error) {
	raw := strings.TrimSpace(h.Get(HeaderActorUserID))
	if raw == "" {
		return Actor{}, sserr.New(sserr.CodeActorHeaderMissing, "Missing "+HeaderActorUserID+" header")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return Actor{}, sserr.Wrap(err, sserr.CodeActorHeaderInvalid, "Invalid "+HeaderActorUserID+" header")
	}
	return Actor{
		userID:    id,
		hasUserID: true,
		email:     strings.TrimSpace(h.Get(HeaderActorEmail)),
		mode:      ModeDev,
	}, nil
}
