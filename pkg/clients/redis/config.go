package redis

import (
	"fmt"
	"net/url"
	"time"
)

// Defaults applied by Config.Validate.
const (
	DefaultPoolSize      = 10
	DefaultDialTimeout   = 5 * time.Second
	DefaultReadTimeout   = 2 * time.Second
	DefaultWriteTimeout  = 2 * time.Second
	DefaultHealthTimeout = 2 * time.Second
)

// Secret hides its value from fmt and text encoders.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) String() string                { return redacted }
func (s Secret) GoString() string              { return redacted }
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Value returns the raw secret.
func (s Secret) Value() string { return string(s) }

// Config locates a Redis server. Redis is optional for Whisper: an empty
// URL disables it.
type Config struct {
	// URL is a redis:// or rediss:// connection URL.
	URL Secret `json:"-" yaml:"url" env:"REDIS_URL"`

	// KeyPrefix namespaces every key written by this service.
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix" env:"REDIS_KEY_PREFIX" envDefault:"whisper:"`

	PoolSize     int           `json:"pool_size" yaml:"pool_size" env:"REDIS_POOL_SIZE"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" env:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" env:"REDIS_WRITE_TIMEOUT"`
}

// Enabled reports whether a URL is configured.
func (c *Config) Enabled() bool {
	return c.URL != ""
}

// Validate fills defaults and checks the URL scheme.
func (c *Config) Validate() error {
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("redis: pool_size must be >= 1, got %d", c.PoolSize)
	}
	if c.DialTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("redis: timeouts must not be negative")
	}
	if !c.Enabled() {
		return fmt.Errorf("redis: url is required")
	}
	u, err := url.Parse(c.URL.Value())
	if err != nil {
		return fmt.Errorf("redis: url is invalid")
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return fmt.Errorf("redis: url scheme must be redis or rediss, got %q", u.Scheme)
	}
	return nil
}
