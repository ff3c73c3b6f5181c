package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/whisper-grc/pkg/config"
	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
)

func validOIDC() Config {
	cfg := DefaultConfig()
	cfg.Mode = "oidc"
	cfg.OIDC.IssuerURL = "https://idp.example.com/realms/whisper"
	cfg.OIDC.Audience = testAudience
	return cfg
}

func TestParseMode(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Mode{"dev": ModeDev, " OIDC ": ModeOIDC, "Dev": ModeDev} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, in := range []string{"", "saml", "none"} {
		_, err := ParseMode(in)
		assert.True(t, sserr.HasCode(err, sserr.CodeAuthModeUnsupported), in)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"dev", func(c *Config) { c.Mode = "dev" }, false},
		{"dev in production", func(c *Config) { c.Mode = "dev"; c.Production = true }, true},
		{"oidc", func(c *Config) {}, false},
		{"oidc in production", func(c *Config) { c.Production = true }, false},
		{"oidc with jwks url", func(c *Config) { c.OIDC.JWKSURL = "https://idp.example.com/certs" }, false},
		{"missing issuer", func(c *Config) { c.OIDC.IssuerURL = "" }, true},
		{"relative issuer", func(c *Config) { c.OIDC.IssuerURL = "/realms/whisper" }, true},
		{"non-http issuer", func(c *Config) { c.OIDC.IssuerURL = "ftp://idp" }, true},
		{"missing audience", func(c *Config) { c.OIDC.Audience = " " }, true},
		{"bad jwks url", func(c *Config) { c.OIDC.JWKSURL = "certs" }, true},
		{"zero cache ttl", func(c *Config) { c.OIDC.JWKSCacheSeconds = 0 }, true},
		{"zero timeout", func(c *Config) { c.OIDC.HTTPTimeoutSeconds = 0 }, true},
		{"negative skew", func(c *Config) { c.OIDC.ClockSkewSeconds = -1 }, true},
		{"zero skew", func(c *Config) { c.OIDC.ClockSkewSeconds = 0 }, false},
		{"unknown mode", func(c *Config) { c.Mode = "ldap" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validOIDC()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOIDCConfig_Durations(t *testing.T) {
	t.Parallel()
	c := DefaultConfig().OIDC
	assert.Equal(t, time.Hour, c.JWKSCacheTTL())
	assert.Equal(t, time.Minute, c.ClockSkew())
	assert.Equal(t, 5*time.Second, c.HTTPTimeout())
}

func TestConfig_LoadFromEnvironment(t *testing.T) {
	t.Parallel()
	env := map[string]string{
		"AUTH_MODE":               "oidc",
		"OIDC_ISSUER_URL":         "https://idp.example.com",
		"OIDC_AUDIENCE":           "whisper-api",
		"OIDC_CLOCK_SKEW_SECONDS": "30",
	}
	var cfg Config
	err := config.New().
		WithLookup(func(k string) (string, bool) { v, ok := env[k]; return v, ok }).
		Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "oidc", cfg.Mode)
	assert.Equal(t, "https://idp.example.com", cfg.OIDC.IssuerURL)
	assert.Equal(t, 30, cfg.OIDC.ClockSkewSeconds)
	assert.Equal(t, DefaultJWKSCacheSeconds, cfg.OIDC.JWKSCacheSeconds)
	assert.Equal(t, DefaultHTTPTimeoutSeconds, cfg.OIDC.HTTPTimeoutSeconds)
}
