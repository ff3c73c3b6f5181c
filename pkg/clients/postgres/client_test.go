package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
)

func newMockClient(t *testing.T) (*Client, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return NewFromPool(mock, &Config{Database: "whisper"}), mock
}

func TestClient_QueryRow(t *testing.T) {
	t.Parallel()
	c, mock := newMockClient(t)

	mock.ExpectQuery("SELECT name FROM organisations").
		WithArgs("id-1").
		WillReturnRows(pgxmock.NewRows([]string{"name"}).AddRow("Acme"))

	var name string
	require.NoError(t, c.QueryRow(context.Background(), "SELECT name FROM organisations WHERE id = $1", "id-1").Scan(&name))
	assert.Equal(t, "Acme", name)
}

func TestClient_QueryError(t *testing.T) {
	t.Parallel()
	c, mock := newMockClient(t)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset"))
	_, err := c.Query(context.Background(), "SELECT 1")
	assert.True(t, sserr.HasCode(err, sserr.CodeInternalDatabase))
}

func TestClient_Exec(t *testing.T) {
	t.Parallel()
	c, mock := newMockClient(t)

	mock.ExpectExec("DELETE FROM audit_events").WillReturnResult(pgxmock.NewResult("DELETE", 3))
	tag, err := c.Exec(context.Background(), "DELETE FROM audit_events")
	require.NoError(t, err)
	assert.EqualValues(t, 3, tag.RowsAffected())
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		code sserr.Code
	}{
		{"deadline", context.DeadlineExceeded, sserr.CodeTimeoutDatabase},
		{"canceled", context.Canceled, sserr.CodeTimeoutDatabase},
		{"unique violation", &pgconn.PgError{Code: "23505"}, sserr.CodeConflictAlreadyExists},
		{"query canceled", &pgconn.PgError{Code: "57014"}, sserr.CodeTimeoutDatabase},
		{"too many connections", &pgconn.PgError{Code: "53300"}, sserr.CodeUnavailableDependency},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, sserr.CodeUnavailableDependency},
		{"foreign key", &pgconn.PgError{Code: "23503"}, sserr.CodeInternalDatabase},
		{"other pg error", &pgconn.PgError{Code: "42P01"}, sserr.CodeInternalDatabase},
		{"structured", sserr.New(sserr.CodeNotFoundUser, "missing"), sserr.CodeNotFoundUser},
		{"plain", errors.New("boom"), sserr.CodeInternalDatabase},
	}
	for _, tt := range tests {
		err := WrapError(tt.err, "op failed")
		assert.True(t, sserr.HasCode(err, tt.code), "%s: got %v", tt.name, err)
	}
	assert.NoError(t, WrapError(nil, "x"))
}

func TestSQLStatePredicates(t *testing.T) {
	t.Parallel()
	unique := &pgconn.PgError{Code: "23505"}
	fk := &pgconn.PgError{Code: "23503"}

	assert.True(t, IsUniqueViolation(WrapError(unique, "insert")))
	assert.False(t, IsUniqueViolation(fk))
	assert.True(t, IsForeignKeyViolation(WrapError(fk, "insert")))
	assert.False(t, IsForeignKeyViolation(errors.New("boom")))
}

func TestClient_InTxCommits(t *testing.T) {
	t.Parallel()
	c, mock := newMockClient(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO organisations").
		WithArgs("x").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := c.InTx(context.Background(), func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), "INSERT INTO organisations (id) VALUES ($1)", "x")
		return err
	})
	require.NoError(t, err)
}

func TestClient_InTxRollsBack(t *testing.T) {
	t.Parallel()
	c, mock := newMockClient(t)
	boom := sserr.New(sserr.CodeConflictAlreadyExists, "duplicate")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := c.InTx(context.Background(), func(pgx.Tx) error { return boom })
	assert.Same(t, boom, err)
}

func TestClient_InTxCommitFailure(t *testing.T) {
	t.Parallel()
	c, mock := newMockClient(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: "23505"})

	err := c.InTx(context.Background(), func(pgx.Tx) error { return nil })
	assert.True(t, sserr.HasCode(err, sserr.CodeConflictAlreadyExists))
}

func TestClient_BeginFailure(t *testing.T) {
	t.Parallel()
	c, mock := newMockClient(t)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))
	called := false
	err := c.InTx(context.Background(), func(pgx.Tx) error { called = true; return nil })
	assert.True(t, sserr.HasCode(err, sserr.CodeInternalDatabase))
	assert.False(t, called)
}

func TestClient_Health(t *testing.T) {
	t.Parallel()
	c, mock := newMockClient(t)

	mock.ExpectPing()
	require.NoError(t, c.Health(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	err := c.Health(context.Background())
	assert.True(t, sserr.HasCode(err, sserr.CodeUnavailableDependency))
}

func TestClient_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	c, mock := newMockClient(t)
	mock.ExpectExec("UPDATE").WillReturnError(errors.New("boom"))
	_, err := c.Exec(context.Background(), "UPDATE user_accounts SET role = $1")
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "postgres.Exec", s.Name())
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Contains(t, s.Attributes(), attribute.String("db.system", "postgresql"))
	assert.Contains(t, s.Attributes(), attribute.String("db.name", "whisper"))
}

func TestTruncateSQL(t *testing.T) {
	t.Parallel()
	short := "SELECT 1"
	assert.Equal(t, short, truncateSQL(short))

	long := "SELECT " + string(make([]byte, 200))
	got := truncateSQL(long)
	assert.Len(t, got, maxSQLTruncateLen+3)
	assert.True(t, len(got) < len(long))
}
