package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
)

const tracerName = "github.com/StricklySoft/whisper-grc/pkg/auth"

// maxTokenSize bounds the raw token before any parsing.
const maxTokenSize = 8192

// allowedAlgorithms is the closed set of accepted signature algorithms.
// Symmetric algorithms and "none" are never accepted.
var allowedAlgorithms = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}

// AllowedAlgorithms returns a copy of the accepted signature algorithms.
func AllowedAlgorithms() []string {
	return append([]string(nil), allowedAlgorithms...)
}

// Verifier verifies a raw bearer token.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// VerifierConfig fixes what a valid token must assert.
type VerifierConfig struct {
	// Issuer must equal the token's iss claim exactly.
	Issuer string
	// Audience must appear in the token's aud claim.
	Audience string
	// JWKSURL overrides discovery of the issuer's key set.
	JWKSURL string
	// ClockSkew is the leeway applied to exp and nbf.
	ClockSkew time.Duration
	// Clock defaults to time.Now.
	Clock Clock
}

// Claims are the verified claims used downstream.
type Claims struct {
	Subject           string
	Email             string
	PreferredUsername string
	Issuer            string
	Audience          []string
	ExpiresAt         time.Time

	// Raw holds every claim as decoded.
	Raw map[string]any
}

// TokenVerifier checks a token's signature against the issuer's published
// keys and validates its registered claims.
//
// Rejections carry sserr.CodeAuthenticationInvalid or
// sserr.CodeAuthenticationExpired. If the issuer's keys cannot be fetched
// the error carries sserr.CodeKeyFetchFailed instead, so callers can tell
// an outage from a bad token.
type TokenVerifier struct {
	cfg    VerifierConfig
	keys   KeyProvider
	parser *jwt.Parser
	tracer trace.Tracer
}

var _ Verifier = (*TokenVerifier)(nil)

// NewTokenVerifier returns a verifier bound to one issuer and audience.
func NewTokenVerifier(cfg VerifierConfig, keys KeyProvider) (*TokenVerifier, error) {
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, configError("auth: verifier requires issuer and audience")
	}
	if cfg.ClockSkew < 0 {
		return nil, configError("auth: clock skew must not be negative")
	}
	if keys == nil {
		return nil, configError("auth: verifier requires a key provider")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(allowedAlgorithms),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithLeeway(cfg.ClockSkew),
		jwt.WithExpirationRequired(),
	}
	if cfg.Clock != nil {
		opts = append(opts, jwt.WithTimeFunc(cfg.Clock))
	}

	return &TokenVerifier{
		cfg:    cfg,
		keys:   keys,
		parser: jwt.NewParser(opts...),
		tracer: otel.Tracer(tracerName),
	}, nil
}

// Verify validates token and returns its claims.
func (v *TokenVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	ctx, span := startSpan(ctx, v.tracer, "auth.VerifyToken")
	defer span.End()

	claims, err := v.verify(ctx, token)
	if err != nil {
		finishSpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("auth.issuer", claims.Issuer))
	return claims, nil
}

func (v *TokenVerifier) verify(ctx context.Context, raw string) (*Claims, error) {
	if raw == "" {
		return nil, invalidToken("auth: token must not be empty")
	}
	if len(raw) > maxTokenSize {
		return nil, invalidToken("auth: token exceeds maximum size")
	}

	token, err := v.parser.ParseWithClaims(raw, jwt.MapClaims{}, func(t *jwt.Token) (any, error) {
		return v.keyFor(ctx, t)
	})
	if err != nil {
		return nil, classifyError(err)
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, invalidToken("auth: unexpected claims type")
	}
	return claimsFrom(mc)
}

// keyFor selects the verification key. The parser has already rejected
// algorithms outside the allow-list, so no network work happens for them.
func (v *TokenVerifier) keyFor(ctx context.Context, t *jwt.Token) (any, error) {
	alg := t.Method.Alg()
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, invalidToken("auth: token header has no kid")
	}

	ks, err := v.keys.SigningKeys(ctx, KeySource{Issuer: v.cfg.Issuer, JWKSURL: v.cfg.JWKSURL})
	if err != nil {
		return nil, err
	}
	if !ks.AllowsAlgorithm(alg) {
		return nil, invalidToken("auth: token algorithm is not published by the issuer")
	}
	key, ok := ks.Key(kid)
	if !ok {
		return nil, invalidToken("auth: no signing key for token kid")
	}
	if key.Algorithm != "" && key.Algorithm != alg {
		return nil, invalidToken("auth: token algorithm does not match signing key")
	}
	return key.Key, nil
}

func claimsFrom(mc jwt.MapClaims) (*Claims, error) {
	sub, _ := mc.GetSubject()
	if strings.TrimSpace(sub) == "" {
		return nil, invalidToken("auth: token has no sub claim")
	}
	email, err := optionalStringClaim(mc, "email")
	if err != nil {
		return nil, err
	}
	preferred, err := optionalStringClaim(mc, "preferred_username")
	if err != nil {
		return nil, err
	}

	c := &Claims{
		Subject:           sub,
		Email:             email,
		PreferredUsername: preferred,
		Raw:               map[string]any(mc),
	}
	c.Issuer, _ = mc.GetIssuer()
	c.Audience, _ = mc.GetAudience()
	if exp, _ := mc.GetExpirationTime(); exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

// optionalStringClaim returns "" for an absent claim. A claim that is
// present must be a non-blank string.
func optionalStringClaim(mc jwt.MapClaims, name string) (string, error) {
	v, present := mc[name]
	if !present {
		return "", nil
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", invalidToken("auth: " + name + " claim must be a non-empty string")
	}
	return s, nil
}

func invalidToken(msg string) *sserr.Error {
	return sserr.New(sserr.CodeAuthenticationInvalid, msg)
}

// classifyError maps parser errors onto error codes. Structured errors
// raised while selecting the key, including key fetch failures, pass
// through unchanged.
func classifyError(err error) *sserr.Error {
	if e, ok := sserr.AsError(err); ok {
		return e
	}
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return sserr.Wrap(err, sserr.CodeAuthenticationExpired, "auth: token has expired")
	case errors.Is(err, jwt.ErrTokenMalformed):
		return sserr.Wrap(err, sserr.CodeAuthenticationInvalid, "auth: token is malformed")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return sserr.Wrap(err, sserr.CodeAuthenticationInvalid, "auth: token signature or algorithm is invalid")
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return sserr.Wrap(err, sserr.CodeAuthenticationInvalid, "auth: token is unverifiable")
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return sserr.Wrap(err, sserr.CodeAuthenticationInvalid, "auth: token is missing a required claim")
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return sserr.Wrap(err, sserr.CodeAuthenticationInvalid, "auth: token is not yet valid")
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return sserr.Wrap(err, sserr.CodeAuthenticationInvalid, "auth: token audience is invalid")
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return sserr.Wrap(err, sserr.CodeAuthenticationInvalid, "auth: token issuer is invalid")
	default:
		return sserr.Wrap(err, sserr.CodeAuthenticationInvalid, "auth: token validation failed")
	}
}

func startSpan(ctx context.Context, tracer trace.Tracer, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// finishSpan marks span as failed when err is non-nil.
func finishSpan(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
