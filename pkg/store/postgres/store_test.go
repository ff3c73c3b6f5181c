package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pgclient "github.com/StricklySoft/whisper-grc/pkg/clients/postgres"
	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
	"github.com/StricklySoft/whisper-grc/pkg/models"
	"github.com/StricklySoft/whisper-grc/pkg/store"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var userCols = []string{"id", "organisation_id", "email", "display_name", "role", "created_at"}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	client := pgclient.NewFromPool(mock, &pgclient.Config{Database: "whisper"})
	return New(client).WithClock(func() time.Time { return fixedNow }), mock
}

func TestStore_Migrate(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS organisation").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, s.Migrate(context.Background()))

	assert.Contains(t, Schema, "UNIQUE (organisation_id, email)")
	assert.Contains(t, Schema, "metadata        JSONB")
}

func TestStore_CreateOrganisation(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	org := &models.Organisation{ID: uuid.New(), Name: "Acme"}

	mock.ExpectExec("INSERT INTO organisation").
		WithArgs(org.ID, "Acme", fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.CreateOrganisation(context.Background(), org))
	assert.Equal(t, fixedNow, org.CreatedAt)
}

func TestStore_GetOrganisation(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT id, name, created_at FROM organisation").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "created_at"}).AddRow(id, "Acme", fixedNow))
	mock.ExpectQuery("SELECT id, name, created_at FROM organisation").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	org, err := s.GetOrganisation(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Acme", org.Name)

	_, err = s.GetOrganisation(context.Background(), id)
	assert.True(t, sserr.HasCode(err, sserr.CodeNotFoundOrganisation))
}

func TestStore_CreateUser(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	u := &models.UserAccount{ID: uuid.New(), OrganisationID: uuid.New(), Email: "ada@example.com"}

	mock.ExpectExec("INSERT INTO user_account").
		WithArgs(u.ID, u.OrganisationID, "ada@example.com", "", "org_member", fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.CreateUser(context.Background(), u))
	assert.Equal(t, models.RoleMember, u.Role)
}

func TestStore_CreateUserDuplicateEmail(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	u := &models.UserAccount{ID: uuid.New(), OrganisationID: uuid.New(), Email: "ada@example.com", Role: models.RoleAdmin}

	mock.ExpectExec("INSERT INTO user_account").
		WithArgs(u.ID, u.OrganisationID, "ada@example.com", "", "org_admin", fixedNow).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "user_account_organisation_email_key"})

	err := s.CreateUser(context.Background(), u)
	assert.True(t, sserr.HasCodeInChain(err, sserr.CodeConflictAlreadyExists))
}

func TestStore_CreateUserUnknownOrganisation(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	u := &models.UserAccount{ID: uuid.New(), OrganisationID: uuid.New(), Email: "ada@example.com"}

	mock.ExpectExec("INSERT INTO user_account").
		WithArgs(u.ID, u.OrganisationID, "ada@example.com", "", "org_member", fixedNow).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "user_account_organisation_id_fkey"})

	err := s.CreateUser(context.Background(), u)
	assert.True(t, sserr.HasCodeInChain(err, sserr.CodeNotFoundOrganisation))
}

func TestStore_FindUserByEmail(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	orgID, userID := uuid.New(), uuid.New()

	mock.ExpectQuery("FROM user_account WHERE organisation_id = \\$1 AND email = \\$2").
		WithArgs(orgID, "ada@example.com").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow(userID, orgID, "ada@example.com", "Ada", "org_admin", fixedNow))

	u, err := s.FindUserByEmail(context.Background(), orgID, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, userID, u.ID)
	assert.Equal(t, models.RoleAdmin, u.Role)
	assert.Equal(t, "Ada", u.DisplayName)
}

func TestStore_UserNotFound(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	userID, orgID := uuid.New(), uuid.New()

	mock.ExpectQuery("FROM user_account WHERE id").
		WithArgs(userID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM user_account WHERE organisation_id").
		WithArgs(orgID, "nobody@example.com").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetUser(context.Background(), userID)
	assert.True(t, sserr.HasCode(err, sserr.CodeNotFoundUser))
	_, err = s.FindUserByEmail(context.Background(), orgID, "nobody@example.com")
	assert.True(t, sserr.HasCode(err, sserr.CodeNotFoundUser))
}

func TestStore_GetUserDatabaseError(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	id := uuid.New()

	mock.ExpectQuery("FROM user_account WHERE id").
		WithArgs(id).
		WillReturnError(errors.New("connection reset"))
	_, err := s.GetUser(context.Background(), id)
	assert.True(t, sserr.HasCode(err, sserr.CodeInternalDatabase))
}

func TestStore_ListUsers(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	orgID := uuid.New()

	mock.ExpectQuery("ORDER BY created_at, email").
		WithArgs(orgID).
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow(uuid.New(), orgID, "ada@example.com", "", "org_owner", fixedNow).
			AddRow(uuid.New(), orgID, "bob@example.com", "Bob", "auditor", fixedNow))

	users, err := s.ListUsers(context.Background(), orgID)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, models.RoleOwner, users[0].Role)
	assert.Equal(t, models.RoleAuditor, users[1].Role)
}

func TestStore_AppendAuditEvent(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	orgID, actorID := uuid.New(), uuid.New()

	mock.ExpectExec("INSERT INTO audit_event").
		WithArgs(pgxmock.AnyArg(), orgID, uuid.NullUUID{UUID: actorID, Valid: true},
			models.AuditUserAccountCreated, "user_account", "u-1",
			[]byte(`{"email":"ada@example.com"}`), fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.AppendAuditEvent(context.Background(), models.AuditEvent{
		OrganisationID: orgID,
		ActorUserID:    uuid.NullUUID{UUID: actorID, Valid: true},
		Action:         models.AuditUserAccountCreated,
		EntityType:     "user_account",
		EntityID:       "u-1",
		Metadata:       map[string]any{"email": "ada@example.com"},
	})
	require.NoError(t, err)
}

func TestStore_AppendAuditEventRejectsUnencodableMetadata(t *testing.T) {
	t.Parallel()
	s, _ := newMockStore(t)

	err := s.AppendAuditEvent(context.Background(), models.AuditEvent{
		OrganisationID: uuid.New(),
		Action:         "x",
		Metadata:       map[string]any{"ch": make(chan int)},
	})
	assert.True(t, sserr.HasCode(err, sserr.CodeInternal))
}

func TestStore_ListAuditEvents(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	orgID := uuid.New()

	mock.ExpectQuery("FROM audit_event WHERE organisation_id").
		WithArgs(orgID, store.DefaultAuditListLimit).
		WillReturnRows(pgxmock.NewRows([]string{"id", "organisation_id", "actor_user_id", "action", "entity_type", "entity_id", "metadata", "created_at"}).
			AddRow(uuid.New(), orgID, uuid.NullUUID{}, models.AuditAccessDenied, "organisation", orgID.String(), []byte(`{"action":"manage_users"}`), fixedNow))

	events, err := s.ListAuditEvents(context.Background(), orgID, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].ActorUserID.Valid)
	assert.Equal(t, "manage_users", events[0].Metadata["action"])
}

func TestStore_WithTx(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	org := &models.Organisation{ID: uuid.New(), Name: "Acme"}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO organisation").
		WithArgs(org.ID, "Acme", fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO audit_event").
		WithArgs(pgxmock.AnyArg(), org.ID, uuid.NullUUID{}, models.AuditOrganisationCreated,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		if err := tx.CreateOrganisation(context.Background(), org); err != nil {
			return err
		}
		return tx.AppendAuditEvent(context.Background(), models.AuditEvent{
			OrganisationID: org.ID, Action: models.AuditOrganisationCreated,
		})
	})
	require.NoError(t, err)
}

func TestStore_WithTxRollsBackOnError(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO organisation").
		WithArgs(pgxmock.AnyArg(), "Acme", fixedNow).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateOrganisation(context.Background(), &models.Organisation{ID: uuid.New(), Name: "Acme"})
	})
	assert.True(t, sserr.IsConflict(err))
}

func TestStore_Ping(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("down"))

	assert.NoError(t, s.Ping(context.Background()))
	assert.True(t, sserr.HasCode(s.Ping(context.Background()), sserr.CodeUnavailableDependency))
}
