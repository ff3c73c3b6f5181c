package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
)

// OIDCResolver authenticates a bearer token and maps it to a user account
// provisioned in the tenant.
type OIDCResolver struct {
	verifier Verifier
	users    UserDirectory
	logger   *slog.Logger
	metrics  *Metrics
}

var _ ActorResolver = (*OIDCResolver)(nil)

// NewOIDCResolver returns a resolver using verifier and users.
func NewOIDCResolver(verifier Verifier, users UserDirectory, logger *slog.Logger, metrics *Metrics) (*OIDCResolver, error) {
	if verifier == nil || users == nil {
		return nil, configError("auth: OIDC resolver requires a verifier and a user directory")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OIDCResolver{verifier: verifier, users: users, logger: logger, metrics: metrics}, nil
}

// Mode returns ModeOIDC.
func (r *OIDCResolver) Mode() Mode { return ModeOIDC }

func (r *OIDCResolver) sealed() {}

// ResolveActor verifies the bearer token and looks up the matching account
// in tenantID.
//
// Errors: sserr.CodeBearerTokenMissing or sserr.CodeBearerTokenInvalid for
// an unusable header, sserr.CodeAuthenticationInvalid or
// sserr.CodeAuthenticationExpired for a rejected token (all 401), and
// sserr.CodeUserNotProvisioned (403) when no account matches. An identity
// provider outage is logged and reported as sserr.CodeBearerTokenInvalid.
func (r *OIDCResolver) ResolveActor(ctx context.Context, tenantID uuid.UUID, h http.Header) (Actor, error) {
	actor, err := r.resolve(ctx, tenantID, h)
	r.metrics.resolution(ModeOIDC, err)
	if err != nil {
		return Actor{}, err
	}
	return actor, nil
}

func (r *OIDCResolver) resolve(ctx context.Context, tenantID uuid.UUID, h http.Header) (Actor, error) {
	token, err := ExtractBearerToken(h.Get(HeaderAuthorization))
	if err != nil {
		return Actor{}, err
	}

	claims, err := r.verifier.Verify(ctx, token)
	if err != nil {
		if sserr.HasCodeInChain(err, sserr.CodeKeyFetchFailed) {
			r.logger.ErrorContext(ctx, "identity provider unavailable, rejecting bearer token",
				"organisation_id", tenantID, "error", err)
			return Actor{}, sserr.Wrap(err, sserr.CodeBearerTokenInvalid, "Invalid bearer token")
		}
		r.logger.DebugContext(ctx, "bearer token rejected", "error", err)
		return Actor{}, err
	}

	account, err := FindProvisionedUser(ctx, r.users, tenantID, claims.Email, claims.Subject)
	if err != nil {
		if sserr.IsNotFound(err) {
			r.logger.InfoContext(ctx, "token subject not provisioned",
				"organisation_id", tenantID, "subject", claims.Subject)
			return Actor{}, sserr.Wrap(err, sserr.CodeUserNotProvisioned,
				"User not provisioned for this organisation")
		}
		return Actor{}, err
	}

	return Actor{
		userID:    account.ID,
		hasUserID: true,
		email:     account.Email,
		subject:   claims.Subject,
		mode:      ModeOIDC,
	}, nil
}
