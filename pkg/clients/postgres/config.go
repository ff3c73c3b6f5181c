package postgres

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// maxSQLTruncateLen bounds SQL recorded in spans so that literals do not
// leak into telemetry.
const maxSQLTruncateLen = 100

// Defaults applied by Config.Validate.
const (
	DefaultHost              = "localhost"
	DefaultPort              = 5432
	DefaultDatabase          = "whisper"
	DefaultUser              = "whisper"
	DefaultMaxConns    int32 = 10
	DefaultMinConns    int32 = 1
	DefaultMaxConnLife       = time.Hour
	DefaultMaxConnIdle       = 30 * time.Minute
	DefaultHealthCheckPeriod = time.Minute
	DefaultConnectTimeout    = 10 * time.Second
	DefaultHealthTimeout     = 5 * time.Second
)

// SSLMode is the libpq sslmode parameter.
type SSLMode string

const (
	SSLModeDisable    SSLMode = "disable"
	SSLModeAllow      SSLMode = "allow"
	SSLModePrefer     SSLMode = "prefer"
	SSLModeRequire    SSLMode = "require"
	SSLModeVerifyCA   SSLMode = "verify-ca"
	SSLModeVerifyFull SSLMode = "verify-full"
)

// Valid reports whether m is a recognised mode.
func (m SSLMode) Valid() bool {
	switch m {
	case SSLModeDisable, SSLModeAllow, SSLModePrefer, SSLModeRequire, SSLModeVerifyCA, SSLModeVerifyFull:
		return true
	}
	return false
}

// Secret hides its value from fmt and text encoders.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) String() string                { return redacted }
func (s Secret) GoString() string              { return redacted }
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Value returns the raw secret.
func (s Secret) Value() string { return string(s) }

// Config locates the Whisper database. URL, when set, takes precedence
// over the structured fields.
type Config struct {
	// URL is a postgres:// connection URL.
	URL Secret `json:"-" yaml:"url" env:"DATABASE_URL"`

	Host     string  `json:"host,omitempty" yaml:"host" env:"POSTGRES_HOST"`
	Port     int     `json:"port,omitempty" yaml:"port" env:"POSTGRES_PORT"`
	Database string  `json:"database" yaml:"database" env:"POSTGRES_DATABASE"`
	User     string  `json:"user" yaml:"user" env:"POSTGRES_USER"`
	Password Secret  `json:"-" yaml:"password" env:"POSTGRES_PASSWORD"`
	SSLMode  SSLMode `json:"ssl_mode,omitempty" yaml:"ssl_mode" env:"POSTGRES_SSLMODE"`

	MaxConns          int32         `json:"max_conns,omitempty" yaml:"max_conns" env:"POSTGRES_MAX_CONNS"`
	MinConns          int32         `json:"min_conns,omitempty" yaml:"min_conns" env:"POSTGRES_MIN_CONNS"`
	MaxConnLifetime   time.Duration `json:"max_conn_lifetime,omitempty" yaml:"max_conn_lifetime" env:"POSTGRES_MAX_CONN_LIFETIME"`
	MaxConnIdleTime   time.Duration `json:"max_conn_idle_time,omitempty" yaml:"max_conn_idle_time" env:"POSTGRES_MAX_CONN_IDLE_TIME"`
	HealthCheckPeriod time.Duration `json:"health_check_period,omitempty" yaml:"health_check_period" env:"POSTGRES_HEALTH_CHECK_PERIOD"`
	ConnectTimeout    time.Duration `json:"connect_timeout,omitempty" yaml:"connect_timeout" env:"POSTGRES_CONNECT_TIMEOUT"`
}

// Enabled reports whether a URL or a host is configured.
func (c *Config) Enabled() bool {
	return c.URL != "" || c.Host != ""
}

// Validate fills defaults and checks the configuration.
func (c *Config) Validate() error {
	if c.MaxConns == 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.MinConns == 0 {
		c.MinConns = DefaultMinConns
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = DefaultMaxConnLife
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = DefaultMaxConnIdle
	}
	if c.HealthCheckPeriod == 0 {
		c.HealthCheckPeriod = DefaultHealthCheckPeriod
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.MaxConns < c.MinConns {
		return fmt.Errorf("postgres: max_conns (%d) must be >= min_conns (%d)", c.MaxConns, c.MinConns)
	}

	if c.URL != "" {
		u, err := url.Parse(c.URL.Value())
		if err != nil {
			return errors.New("postgres: database url is invalid")
		}
		if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			return fmt.Errorf("postgres: database url scheme must be postgres, got %q", u.Scheme)
		}
		return nil
	}

	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("postgres: port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.User == "" {
		c.User = DefaultUser
	}
	if c.SSLMode == "" {
		c.SSLMode = SSLModePrefer
	}
	if !c.SSLMode.Valid() {
		return fmt.Errorf("postgres: ssl_mode %q is not valid", c.SSLMode)
	}
	return nil
}

// ConnectionString returns URL or a URL built from the structured fields.
// The result contains the password in clear text.
func (c *Config) ConnectionString() string {
	if c.URL != "" {
		return c.URL.Value()
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password.Value()),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Database,
	}
	q := u.Query()
	if c.SSLMode != "" {
		q.Set("sslmode", string(c.SSLMode))
	}
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// databaseName returns the database named by the configuration.
func (c *Config) databaseName() string {
	if c.URL != "" {
		if u, err := url.Parse(c.URL.Value()); err == nil {
			return strings.TrimPrefix(u.Path, "/")
		}
	}
	return c.Database
}

func truncateSQL(sql string) string {
	if len(sql) <= maxSQLTruncateLen {
		return sql
	}
	return sql[:maxSQLTruncateLen] + "..."
}
