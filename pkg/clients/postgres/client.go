// Package postgres provides the PostgreSQL client used by the Whisper
// stores: a pgx pool with OpenTelemetry spans and structured errors.
//
// Tests inject a pgxmock pool through NewFromPool:
//
//	mock, _ := pgxmock.NewPool()
//	client := postgres.NewFromPool(mock, &postgres.Config{Database: "whisper"})
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
)

const tracerName = "github.com/StricklySoft/whisper-grc/pkg/clients/postgres"

// Pool is the subset of *pgxpool.Pool the Client uses. pgxmock pools
// satisfy it.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

var _ Pool = (*pgxpool.Pool)(nil)

// Querier is satisfied by both *Client and pgx.Tx, so store code runs the
// same inside and outside a transaction.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Client is safe for concurrent use.
type Client struct {
	pool         Pool
	tracer       trace.Tracer
	databaseName string
}

var _ Querier = (*Client)(nil)

// NewClient validates cfg, opens a pool and pings the server.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalConfiguration, "postgres: invalid configuration")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalConfiguration, "postgres: failed to parse connection string")
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency, "postgres: failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency, "postgres: failed to connect to database")
	}
	return &Client{
		pool:         pool,
		tracer:       otel.Tracer(tracerName),
		databaseName: cfg.databaseName(),
	}, nil
}

// NewFromPool wraps an existing pool. cfg may be nil.
func NewFromPool(pool Pool, cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Client{
		pool:         pool,
		tracer:       otel.Tracer(tracerName),
		databaseName: cfg.databaseName(),
	}
}

// Query runs a query returning rows. The caller closes the rows.
func (c *Client) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	ctx, span := c.startSpan(ctx, "Query", sql)
	rows, err := c.pool.Query(ctx, sql, args...)
	finishSpan(span, err)
	if err != nil {
		return nil, WrapError(err, "postgres: query failed")
	}
	return rows, nil
}

// QueryRow runs a query returning at most one row. Errors surface from
// Scan and are not recorded on the span.
func (c *Client) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	ctx, span := c.startSpan(ctx, "QueryRow", sql)
	defer span.End()
	return c.pool.QueryRow(ctx, sql, args...)
}

// Exec runs a statement that returns no rows.
func (c *Client) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	ctx, span := c.startSpan(ctx, "Exec", sql)
	tag, err := c.pool.Exec(ctx, sql, args...)
	finishSpan(span, err)
	if err != nil {
		return tag, WrapError(err, "postgres: exec failed")
	}
	return tag, nil
}

// Begin starts a transaction.
func (c *Client) Begin(ctx context.Context) (pgx.Tx, error) {
	ctx, span := c.startSpan(ctx, "Begin", "BEGIN")
	tx, err := c.pool.Begin(ctx)
	finishSpan(span, err)
	if err != nil {
		return nil, WrapError(err, "postgres: begin transaction failed")
	}
	return tx, nil
}

// InTx runs fn in a transaction, committing when fn returns nil and rolling
// back otherwise. fn's error is returned unchanged.
func (c *Client) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := c.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}

	ctx, span := c.startSpan(ctx, "Commit", "COMMIT")
	err = tx.Commit(ctx)
	finishSpan(span, err)
	if err != nil {
		return WrapError(err, "postgres: commit failed")
	}
	return nil
}

// Health pings the database, bounded by DefaultHealthTimeout when ctx has
// no deadline.
func (c *Client) Health(ctx context.Context) error {
	ctx, span := c.startSpan(ctx, "Health", "SELECT 1")
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHealthTimeout)
		defer cancel()
	}
	err := c.pool.Ping(ctx)
	finishSpan(span, err)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeUnavailableDependency, "postgres: health check failed")
	}
	return nil
}

// Close releases the pool.
func (c *Client) Close() {
	c.pool.Close()
}

func (c *Client) startSpan(ctx context.Context, op, sql string) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, "postgres."+op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.name", c.databaseName),
		attribute.String("db.statement", truncateSQL(sql)),
	)
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

// WrapError classifies a database error. Deadlines, cancellation and
// query_canceled become sserr.CodeTimeoutDatabase; unique violations
// sserr.CodeConflictAlreadyExists; lost connections and exhausted server
// resources sserr.CodeUnavailableDependency; everything else
// sserr.CodeInternalDatabase. Structured errors pass through unchanged.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	if _, ok := sserr.AsError(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return sserr.Wrap(err, sserr.CodeTimeoutDatabase, message)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return sserr.Wrap(err, sserr.CodeInternalDatabase, message)
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return sserr.Wrap(err, sserr.CodeConflictAlreadyExists, message)
	case pgerrcode.QueryCanceled:
		return sserr.Wrap(err, sserr.CodeTimeoutDatabase, message)
	case pgerrcode.ConnectionException,
		pgerrcode.ConnectionDoesNotExist,
		pgerrcode.ConnectionFailure,
		pgerrcode.CannotConnectNow,
		pgerrcode.SQLClientUnableToEstablishSQLConnection,
		pgerrcode.AdminShutdown,
		pgerrcode.CrashShutdown,
		pgerrcode.TooManyConnections:
		return sserr.Wrap(err, sserr.CodeUnavailableDependency, message)
	}
	return sserr.Wrap(err, sserr.CodeInternalDatabase, message)
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	return hasSQLState(err, pgerrcode.UniqueViolation)
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	return hasSQLState(err, pgerrcode.ForeignKeyViolation)
}

func hasSQLState(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
