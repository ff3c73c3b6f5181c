// Package redis wraps go-redis with tracing, structured errors and byte
// oriented get/set helpers. Whisper uses it to share identity provider key
// sets between replicas.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
)

const tracerName = "github.com/StricklySoft/whisper-grc/pkg/clients/redis"

// Cmdable is the subset of *redis.Client the Client uses.
type Cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

var _ Cmdable = (*redis.Client)(nil)

// Client is a traced Redis client. Keys passed to its methods are
// namespaced with the configured prefix.
type Client struct {
	cmdable Cmdable
	prefix  string
	tracer  trace.Tracer
}

// NewClient connects and pings the server.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalConfiguration, "redis: invalid configuration")
	}
	opts, err := redis.ParseURL(cfg.URL.Value())
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalConfiguration, "redis: failed to parse url")
	}
	opts.PoolSize = cfg.PoolSize
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency, "redis: failed to connect")
	}
	return NewFromClient(rdb, cfg.KeyPrefix), nil
}

// NewFromClient wraps an existing client, such as one pointed at miniredis
// in tests.
func NewFromClient(cmdable Cmdable, keyPrefix string) *Client {
	return &Client{cmdable: cmdable, prefix: keyPrefix, tracer: otel.Tracer(tracerName)}
}

// Get returns the value at key, or (nil, nil) if the key does not exist.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := c.startSpan(ctx, "Get")
	val, err := c.cmdable.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		finishSpan(span, nil)
		return nil, nil
	}
	finishSpan(span, err)
	if err != nil {
		return nil, wrapError(err, "redis: get failed")
	}
	return val, nil
}

// Set stores value at key with the given expiration; zero means no expiry.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span := c.startSpan(ctx, "Set")
	err := c.cmdable.Set(ctx, c.prefix+key, value, ttl).Err()
	finishSpan(span, err)
	if err != nil {
		return wrapError(err, "redis: set failed")
	}
	return nil
}

// Del removes key.
func (c *Client) Del(ctx context.Context, key string) error {
	ctx, span := c.startSpan(ctx, "Del")
	err := c.cmdable.Del(ctx, c.prefix+key).Err()
	finishSpan(span, err)
	if err != nil {
		return wrapError(err, "redis: del failed")
	}
	return nil
}

// Health pings the server, bounded by DefaultHealthTimeout when ctx has no
// deadline.
func (c *Client) Health(ctx context.Context) error {
	ctx, span := c.startSpan(ctx, "Health")
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHealthTimeout)
		defer cancel()
	}
	err := c.cmdable.Ping(ctx).Err()
	finishSpan(span, err)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeUnavailableDependency, "redis: health check failed")
	}
	return nil
}

// Close closes the underlying client.
func (c *Client) Close() error {
	return c.cmdable.Close()
}

func (c *Client) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, "redis."+op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("db.system", "redis"))
	return ctx, span
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func wrapError(err error, message string) *sserr.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return sserr.Wrap(err, sserr.CodeTimeout, message)
	}
	return sserr.Wrap(err, sserr.CodeUnavailableDependency, message)
}
