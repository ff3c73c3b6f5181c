package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
	"github.com/StricklySoft/whisper-grc/pkg/models"
	"github.com/StricklySoft/whisper-grc/pkg/tenant"
)

// AuditRecorder receives security-relevant events. The audit package
// provides the implementation.
type AuditRecorder interface {
	Record(ctx context.Context, ev models.AuditEvent) error
}

// Request is the part of an inbound request the gate inspects.
type Request struct {
	Header http.Header

	// PathOrganisationID is the organisation id embedded in the route, or
	// "" when the route has none.
	PathOrganisationID string
}

// Principal is an authenticated actor bound to its account and tenant.
type Principal struct {
	OrganisationID uuid.UUID
	Actor          Actor
	Account        *models.UserAccount
}

// GateConfig configures a Gate.
type GateConfig struct {
	Resolver ActorResolver
	Users    UserDirectory

	// Audit optionally records denials.
	Audit AuditRecorder

	Logger  *slog.Logger
	Metrics *Metrics

	// PathOrganisationID extracts the route's organisation id for the
	// HTTP adapters. It must match the router in use: an extractor that
	// always returns "" disables the cross-tenant route check.
	PathOrganisationID func(r *http.Request) string
}

// Gate authorizes requests: tenant, then actor, then account membership,
// then role permission. Each step short-circuits.
type Gate struct {
	resolver ActorResolver
	users    UserDirectory
	audit    AuditRecorder
	logger   *slog.Logger
	metrics  *Metrics
	pathOrg  func(r *http.Request) string
}

// NewGate returns a Gate. Resolver, Users and PathOrganisationID are
// required.
func NewGate(cfg GateConfig) (*Gate, error) {
	if cfg.Resolver == nil || cfg.Users == nil {
		return nil, configError("auth: gate requires a resolver and a user directory")
	}
	if cfg.PathOrganisationID == nil {
		return nil, configError("auth: gate requires a path organisation extractor")
	}
	g := &Gate{
		resolver: cfg.Resolver,
		users:    cfg.Users,
		audit:    cfg.Audit,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		pathOrg:  cfg.PathOrganisationID,
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g, nil
}

// Mode returns the active authentication mode.
func (g *Gate) Mode() Mode {
	return g.resolver.Mode()
}

// ResolveActor resolves the tenant and the actor without any account or
// role check. A missing tenant fails before any authentication work.
func (g *Gate) ResolveActor(ctx context.Context, req Request) (uuid.UUID, Actor, error) {
	tenantID, err := tenant.Resolve(req.Header)
	if err != nil {
		return uuid.Nil, Actor{}, err
	}
	if err := checkPathOrganisation(req.PathOrganisationID, tenantID); err != nil {
		return uuid.Nil, Actor{}, err
	}
	actor, err := g.resolver.ResolveActor(ctx, tenantID, req.Header)
	if err != nil {
		return uuid.Nil, Actor{}, err
	}
	return tenantID, actor, nil
}

// ResolveAuthorizedActor returns the principal for req if its role grants
// action.
//
// Errors, in check order: tenant header (400), path organisation differs
// from tenant (403), actor resolution (400/401/403), actor without a known
// account (401), account outside the tenant (403), role lacks action (403).
func (g *Gate) ResolveAuthorizedActor(ctx context.Context, req Request, action Action) (*Principal, error) {
	p, err := g.authorize(ctx, req, action)
	g.metrics.decision(action, err)
	if err != nil {
		g.recordDenial(ctx, req, p, action, err)
		return nil, err
	}
	return p, nil
}

func (g *Gate) authorize(ctx context.Context, req Request, action Action) (*Principal, error) {
	tenantID, actor, err := g.ResolveActor(ctx, req)
	if err != nil {
		return nil, err
	}
	p := &Principal{OrganisationID: tenantID, Actor: actor}

	userID, ok := actor.UserID()
	if !ok {
		return p, sserr.New(sserr.CodeActorUnknown, "Actor user not found")
	}
	account, err := g.users.GetUser(ctx, userID)
	if err != nil {
		if sserr.IsNotFound(err) {
			return p, sserr.Wrap(err, sserr.CodeActorUnknown, "Actor user not found")
		}
		return p, err
	}
	if !account.BelongsTo(tenantID) {
		return p, sserr.New(sserr.CodeCrossTenantDenied, "Actor not in organisation")
	}
	p.Account = account

	if !HasPermission(account.Role, action) {
		return p, sserr.New(sserr.CodeAuthorizationDenied, "Forbidden").
			WithDetail("action", action.String())
	}
	return p, nil
}

// recordDenial writes an audit event for authorization failures of an
// identified actor. Authentication failures are only counted.
func (g *Gate) recordDenial(ctx context.Context, req Request, p *Principal, action Action, err error) {
	if g.audit == nil || p == nil || !sserr.IsAuthorization(err) {
		return
	}
	ev := models.AuditEvent{
		OrganisationID: p.OrganisationID,
		Action:         models.AuditAccessDenied,
		EntityType:     "organisation",
		EntityID:       p.OrganisationID.String(),
		Metadata: map[string]any{
			"action":    action.String(),
			"code":      string(sserr.GetCode(err)),
			"auth_mode": string(p.Actor.Mode()),
		},
	}
	if id, ok := p.Actor.UserID(); ok {
		ev.ActorUserID = uuid.NullUUID{UUID: id, Valid: true}
	}
	if req.PathOrganisationID != "" {
		ev.Metadata["path_organisation_id"] = req.PathOrganisationID
	}
	if recErr := g.audit.Record(ctx, ev); recErr != nil {
		g.logger.WarnContext(ctx, "recording access denial failed", "error", recErr)
	}
}

func checkPathOrganisation(raw string, tenantID uuid.UUID) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	pathID, err := uuid.Parse(raw)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeValidationFormat, "Invalid organisation id in path")
	}
	return tenant.RequireSameOrganisation(pathID, tenantID)
}
