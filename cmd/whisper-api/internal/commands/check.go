package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/StricklySoft/whisper-grc/pkg/auth"
	"github.com/StricklySoft/whisper-grc/pkg/config"
)

// CheckConfigCmd loads and validates configuration without serving.
type CheckConfigCmd struct{}

func (c *CheckConfigCmd) Run(_ context.Context, g *Globals) error {
	return checkConfig(os.Stdout, g, nil)
}

func checkConfig(w io.Writer, g *Globals, lookup config.LookupFunc) error {
	cfg, err := loadConfig(g, lookup)
	if err != nil {
		return err
	}
	mode, _ := auth.ParseMode(cfg.Auth.Mode)

	fmt.Fprintf(w, "auth_mode:  %s\n", mode)
	if mode == auth.ModeOIDC {
		fmt.Fprintf(w, "issuer:     %s\n", cfg.Auth.OIDC.IssuerURL)
		fmt.Fprintf(w, "audience:   %s\n", cfg.Auth.OIDC.Audience)
		if cfg.Auth.OIDC.JWKSURL != "" {
			fmt.Fprintf(w, "jwks_url:   %s\n", cfg.Auth.OIDC.JWKSURL)
		}
		fmt.Fprintf(w, "jwks_ttl:   %s\n", cfg.Auth.OIDC.JWKSCacheTTL())
		fmt.Fprintf(w, "clock_skew: %s\n", cfg.Auth.OIDC.ClockSkew())
	}
	fmt.Fprintf(w, "http_addr:  %s\n", cfg.HTTPAddr)
	fmt.Fprintf(w, "postgres:   %s\n", enabled(cfg.Postgres.Enabled()))
	fmt.Fprintf(w, "redis:      %s\n", enabled(cfg.Redis.Enabled()))
	fmt.Fprintf(w, "tracing:    %s\n", enabled(cfg.Telemetry.Enabled()))
	fmt.Fprintln(w, "configuration OK")
	return nil
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
