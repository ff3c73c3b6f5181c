package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
)

// Request headers read by the resolvers.
const (
	HeaderAuthorization = "Authorization"
	HeaderActorUserID   = "X-Actor-User-Id"
	HeaderActorEmail    = "X-Actor-Email"
)

// Actor is the identity behind a request. It is immutable; a zero Actor
// has no user id.
type Actor struct {
	userID    uuid.UUID
	hasUserID bool
	email     string
	subject   string
	mode      Mode
}

// UserID returns the actor's account id and whether one is present.
func (a Actor) UserID() (uuid.UUID, bool) {
	return a.userID, a.hasUserID
}

// Email returns the actor's email, or "".
func (a Actor) Email() string { return a.email }

// Subject returns the token subject, or "" in dev mode.
func (a Actor) Subject() string { return a.subject }

// Mode returns the mode that resolved the actor.
func (a Actor) Mode() Mode { return a.mode }

// LogValue implements slog.LogValuer.
func (a Actor) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("auth_mode", string(a.mode))}
	if a.hasUserID {
		attrs = append(attrs, slog.String("user_id", a.userID.String()))
	}
	if a.subject != "" {
		attrs = append(attrs, slog.String("subject", a.subject))
	}
	return slog.GroupValue(attrs...)
}

// ActorResolver identifies the caller of a request in an already-resolved
// tenant. The interface is sealed: *DevResolver and *OIDCResolver are its
// only implementations, and NewActorResolver chooses between them once at
// startup.
type ActorResolver interface {
	ResolveActor(ctx context.Context, tenantID uuid.UUID, h http.Header) (Actor, error)
	Mode() Mode
	sealed()
}

// ResolverDeps carries the collaborators a resolver may need. Only Users is
// required, and only for ModeOIDC.
type ResolverDeps struct {
	Users UserDirectory

	// Keys overrides the key set cache built from the OIDC settings.
	Keys KeyProvider

	// HTTPClient, Clock and Store configure the default key set cache.
	HTTPClient HTTPClient
	Clock      Clock
	Store      DocumentStore

	Logger  *slog.Logger
	Metrics *Metrics
}

// NewActorResolver validates cfg and builds the resolver for its mode. It
// is the only place the mode setting is interpreted.
func NewActorResolver(cfg Config, deps ResolverDeps) (ActorResolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, _ := ParseMode(cfg.Mode)
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch mode {
	case ModeDev:
		return NewDevResolver(logger, deps.Metrics), nil
	case ModeOIDC:
		keys := deps.Keys
		if keys == nil {
			keys = NewKeySetCache(KeySetCacheConfig{
				TTL:          cfg.OIDC.JWKSCacheTTL(),
				FetchTimeout: cfg.OIDC.HTTPTimeout(),
				HTTPClient:   deps.HTTPClient,
				Clock:        deps.Clock,
				Store:        deps.Store,
				Logger:       logger,
				Metrics:      deps.Metrics,
			})
		}
		verifier, err := NewTokenVerifier(VerifierConfig{
			Issuer:    cfg.OIDC.IssuerURL,
			Audience:  cfg.OIDC.Audience,
			JWKSURL:   cfg.OIDC.JWKSURL,
			ClockSkew: cfg.OIDC.ClockSkew(),
			Clock:     deps.Clock,
		}, keys)
		if err != nil {
			return nil, err
		}
		return NewOIDCResolver(verifier, deps.Users, logger, deps.Metrics)
	}
	return nil, sserr.Newf(sserr.CodeAuthModeUnsupported, "auth: unsupported AUTH_MODE %q", cfg.Mode)
}

// ExtractBearerToken returns the token from an Authorization header value.
// The scheme match is case-insensitive. A missing header yields
// sserr.CodeBearerTokenMissing; any other scheme or an empty token yields
// sserr.CodeBearerTokenInvalid.
func ExtractBearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", sserr.New(sserr.CodeBearerTokenMissing, "Missing bearer token")
	}
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", sserr.New(sserr.CodeBearerTokenInvalid, "Invalid bearer token")
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", sserr.New(sserr.CodeBearerTokenInvalid, "Invalid bearer token")
	}
	return token, nil
}
