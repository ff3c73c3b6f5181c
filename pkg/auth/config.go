package auth

import (
	"net/url"
	"strings"
	"time"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
)

// Mode selects how actors are identified.
type Mode string

const (
	// ModeDev trusts the X-Actor-User-Id header. Never enable in production.
	ModeDev Mode = "dev"
	// ModeOIDC requires a bearer token issued by the configured provider.
	ModeOIDC Mode = "oidc"
)

func (m Mode) String() string {
	return string(m)
}

// ParseMode returns the Mode named by s (case-insensitive). Any other value
// fails with sserr.CodeAuthModeUnsupported.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDev:
		return ModeDev, nil
	case ModeOIDC:
		return ModeOIDC, nil
	}
	return "", sserr.Newf(sserr.CodeAuthModeUnsupported, "auth: unsupported AUTH_MODE %q", s)
}

// Defaults for OIDC settings.
const (
	DefaultJWKSCacheSeconds   = 3600
	DefaultClockSkewSeconds   = 60
	DefaultHTTPTimeoutSeconds = 5
)

// OIDCConfig configures token verification. Durations are whole seconds to
// match the deployment environment variables.
type OIDCConfig struct {
	// IssuerURL is the expected iss claim and the base for discovery.
	IssuerURL string `json:"issuer_url" yaml:"issuer_url" env:"ISSUER_URL"`

	// Audience is the expected aud claim.
	Audience string `json:"audience" yaml:"audience" env:"AUDIENCE"`

	// JWKSURL bypasses discovery when set.
	JWKSURL string `json:"jwks_url,omitempty" yaml:"jwks_url" env:"JWKS_URL"`

	JWKSCacheSeconds   int `json:"jwks_cache_seconds" yaml:"jwks_cache_seconds" env:"JWKS_CACHE_SECONDS" envDefault:"3600"`
	ClockSkewSeconds   int `json:"clock_skew_seconds" yaml:"clock_skew_seconds" env:"CLOCK_SKEW_SECONDS" envDefault:"60"`
	HTTPTimeoutSeconds int `json:"http_timeout_seconds" yaml:"http_timeout_seconds" env:"HTTP_TIMEOUT_SECONDS" envDefault:"5"`
}

// JWKSCacheTTL returns the key set lifetime.
func (c OIDCConfig) JWKSCacheTTL() time.Duration {
	return time.Duration(c.JWKSCacheSeconds) * time.Second
}

// ClockSkew returns the leeway applied to exp and nbf.
func (c OIDCConfig) ClockSkew() time.Duration {
	return time.Duration(c.ClockSkewSeconds) * time.Second
}

// HTTPTimeout returns the per-request timeout for discovery and key set
// fetches.
func (c OIDCConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// Validate checks the settings required by ModeOIDC.
func (c OIDCConfig) Validate() error {
	if err := validateAbsoluteURL("OIDC_ISSUER_URL", c.IssuerURL, true); err != nil {
		return err
	}
	if strings.TrimSpace(c.Audience) == "" {
		return configError("auth: OIDC_AUDIENCE is required when AUTH_MODE=oidc")
	}
	if err := validateAbsoluteURL("OIDC_JWKS_URL", c.JWKSURL, false); err != nil {
		return err
	}
	if c.JWKSCacheSeconds <= 0 {
		return configError("auth: OIDC_JWKS_CACHE_SECONDS must be positive")
	}
	if c.HTTPTimeoutSeconds <= 0 {
		return configError("auth: OIDC_HTTP_TIMEOUT_SECONDS must be positive")
	}
	if c.ClockSkewSeconds < 0 {
		return configError("auth: OIDC_CLOCK_SKEW_SECONDS must not be negative")
	}
	return nil
}

// Config selects and configures the authentication mode. It is loaded once
// at startup with the config package and validated before serving.
type Config struct {
	Mode string `json:"auth_mode" yaml:"auth_mode" env:"AUTH_MODE" envDefault:"dev"`

	// Production forbids ModeDev.
	Production bool `json:"production" yaml:"production" env:"PRODUCTION"`

	OIDC OIDCConfig `json:"oidc" yaml:"oidc" env:"OIDC"`
}

// DefaultConfig returns dev mode with OIDC defaults filled in.
func DefaultConfig() Config {
	return Config{
		Mode: string(ModeDev),
		OIDC: OIDCConfig{
			JWKSCacheSeconds:   DefaultJWKSCacheSeconds,
			ClockSkewSeconds:   DefaultClockSkewSeconds,
			HTTPTimeoutSeconds: DefaultHTTPTimeoutSeconds,
		},
	}
}

// Validate fails fast on an unknown mode, on dev mode in production and on
// incomplete OIDC settings.
func (c Config) Validate() error {
	mode, err := ParseMode(c.Mode)
	if err != nil {
		return err
	}
	switch mode {
	case ModeDev:
		if c.Production {
			return configError("auth: AUTH_MODE=dev is not permitted when PRODUCTION=true")
		}
	case ModeOIDC:
		return c.OIDC.Validate()
	}
	return nil
}

func validateAbsoluteURL(name, raw string, required bool) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return configError("auth: " + name + " is required when AUTH_MODE=oidc")
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return configError("auth: " + name + " must be an absolute http(s) URL")
	}
	return nil
}

func configError(msg string) *sserr.Error {
	return sserr.New(sserr.CodeInternalConfiguration, msg)
}
