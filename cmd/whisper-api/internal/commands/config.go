package commands

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/StricklySoft/whisper-grc/pkg/auth"
	pgclient "github.com/StricklySoft/whisper-grc/pkg/clients/postgres"
	"github.com/StricklySoft/whisper-grc/pkg/clients/redis"
	"github.com/StricklySoft/whisper-grc/pkg/config"
	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
	"github.com/StricklySoft/whisper-grc/pkg/telemetry"
)

// Globals are the flags shared by every command.
type Globals struct {
	Debug      bool
	ConfigFile string
	Version    string
}

// AppConfig is the process configuration. Auth, Postgres and Redis read
// their own variables (AUTH_MODE, DATABASE_URL, REDIS_URL and so on).
type AppConfig struct {
	HTTPAddr         string        `json:"http_addr" yaml:"http_addr" env:"HTTP_ADDR" envDefault:":8000"`
	CORSAllowOrigins []string      `json:"cors_allow_origins" yaml:"cors_allow_origins" env:"CORS_ALLOW_ORIGINS" envDefault:"http://localhost:5173"`
	LogLevel         string        `json:"log_level" yaml:"log_level" env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout  time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// StartupRetryTimeout bounds how long serve waits for Postgres and
	// Redis to accept connections.
	StartupRetryTimeout time.Duration `json:"startup_retry_timeout" yaml:"startup_retry_timeout" env:"STARTUP_RETRY_TIMEOUT" envDefault:"30s"`

	Auth     auth.Config     `json:"auth" yaml:"auth"`
	Postgres pgclient.Config `json:"postgres" yaml:"postgres"`
	Redis    redis.Config    `json:"redis" yaml:"redis"`

	Telemetry telemetry.Config `json:"telemetry" yaml:"telemetry"`
}

// Validate checks every section. Optional backends are validated only
// when configured.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return sserr.New(sserr.CodeValidationRequired, "config: HTTP_ADDR is required")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.ShutdownTimeout <= 0 {
		return sserr.New(sserr.CodeValidation, "config: SHUTDOWN_TIMEOUT must be positive")
	}
	if c.StartupRetryTimeout <= 0 {
		return sserr.New(sserr.CodeValidation, "config: STARTUP_RETRY_TIMEOUT must be positive")
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if c.Postgres.Enabled() {
		if err := c.Postgres.Validate(); err != nil {
			return sserr.Wrap(err, sserr.CodeInternalConfiguration, err.Error())
		}
	}
	if c.Redis.Enabled() {
		if err := c.Redis.Validate(); err != nil {
			return sserr.Wrap(err, sserr.CodeInternalConfiguration, err.Error())
		}
	}
	return nil
}

func loadConfig(g *Globals, lookup config.LookupFunc) (*AppConfig, error) {
	var cfg AppConfig
	l := config.New().WithFile(g.ConfigFile)
	if lookup != nil {
		l = l.WithLookup(lookup)
	}
	if err := l.Load(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, sserr.Newf(sserr.CodeValidation, "config: LOG_LEVEL %q is not a valid level", s)
	}
	return level, nil
}

// newLogger returns a JSON logger in production and a text logger
// otherwise. Debug overrides the configured level.
func newLogger(w io.Writer, cfg *AppConfig, debug bool) *slog.Logger {
	level, _ := parseLevel(cfg.LogLevel)
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Auth.Production {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
