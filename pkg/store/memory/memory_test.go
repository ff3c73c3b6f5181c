package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/whisper-grc/internal/testutil/fixtures"
	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
	"github.com/StricklySoft/whisper-grc/pkg/models"
	"github.com/StricklySoft/whisper-grc/pkg/store"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*Store, *models.Organisation) {
	t.Helper()
	s := New().WithClock(func() time.Time { return fixedNow })
	org := fixtures.NewOrganisation(t, fixtures.OrganisationName)
	require.NoError(t, s.CreateOrganisation(context.Background(), org))
	return s, org
}

func mustUser(t *testing.T, orgID uuid.UUID, email string, role models.Role) *models.UserAccount {
	t.Helper()
	u, err := models.NewUserAccount(orgID, email, "", role)
	require.NoError(t, err)
	return u
}

func TestStore_Organisations(t *testing.T) {
	t.Parallel()
	s, org := newStore(t)
	ctx := context.Background()

	got, err := s.GetOrganisation(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, fixtures.OrganisationName, got.Name)
	assert.Equal(t, fixedNow, got.CreatedAt)

	_, err = s.GetOrganisation(ctx, uuid.New())
	assert.True(t, sserr.HasCode(err, sserr.CodeNotFoundOrganisation))

	err = s.CreateOrganisation(ctx, org)
	assert.True(t, sserr.HasCode(err, sserr.CodeConflictAlreadyExists))
}

func TestStore_Users(t *testing.T) {
	t.Parallel()
	s, org := newStore(t)
	ctx := context.Background()

	ada := mustUser(t, org.ID, "ada@example.com", models.RoleAdmin)
	require.NoError(t, s.CreateUser(ctx, ada))

	got, err := s.GetUser(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)

	found, err := s.FindUserByEmail(ctx, org.ID, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, ada.ID, found.ID)

	_, err = s.FindUserByEmail(ctx, org.ID, "ADA@example.com")
	assert.True(t, sserr.HasCode(err, sserr.CodeNotFoundUser), "email match is exact")

	_, err = s.FindUserByEmail(ctx, uuid.New(), "ada@example.com")
	assert.True(t, sserr.HasCode(err, sserr.CodeNotFoundUser))

	_, err = s.GetUser(ctx, uuid.New())
	assert.True(t, sserr.HasCode(err, sserr.CodeNotFoundUser))
}

func TestStore_DuplicateEmailPerOrganisation(t *testing.T) {
	t.Parallel()
	s, org := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, mustUser(t, org.ID, "ada@example.com", "")))
	err := s.CreateUser(ctx, mustUser(t, org.ID, "ada@example.com", ""))
	assert.True(t, sserr.HasCode(err, sserr.CodeConflictAlreadyExists))

	other, err := models.NewOrganisation("Globex")
	require.NoError(t, err)
	require.NoError(t, s.CreateOrganisation(ctx, other))
	assert.NoError(t, s.CreateUser(ctx, mustUser(t, other.ID, "ada@example.com", "")))
}

func TestStore_CreateUserUnknownOrganisation(t *testing.T) {
	t.Parallel()
	s, _ := newStore(t)
	err := s.CreateUser(context.Background(), mustUser(t, uuid.New(), "ada@example.com", ""))
	assert.True(t, sserr.HasCode(err, sserr.CodeNotFoundOrganisation))
}

func TestStore_ListUsersScopedAndOrdered(t *testing.T) {
	t.Parallel()
	s, org := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, mustUser(t, org.ID, "zed@example.com", "")))
	require.NoError(t, s.CreateUser(ctx, mustUser(t, org.ID, "ada@example.com", "")))

	other, _ := models.NewOrganisation("Globex")
	require.NoError(t, s.CreateOrganisation(ctx, other))
	require.NoError(t, s.CreateUser(ctx, mustUser(t, other.ID, "bob@example.com", "")))

	users, err := s.ListUsers(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ada@example.com", users[0].Email)
	assert.Equal(t, "zed@example.com", users[1].Email)
}

func TestStore_AuditEvents(t *testing.T) {
	t.Parallel()
	s, org := newStore(t)
	ctx := context.Background()

	for _, action := range []string{"first", "second", "third"} {
		require.NoError(t, s.AppendAuditEvent(ctx, models.AuditEvent{
			OrganisationID: org.ID, Action: action, EntityType: "organisation", EntityID: org.ID.String(),
		}))
	}

	events, err := s.ListAuditEvents(ctx, org.ID, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "third", events[0].Action)
	assert.Equal(t, "second", events[1].Action)
	assert.NotEqual(t, uuid.Nil, events[0].ID)
	assert.Equal(t, fixedNow, events[0].CreatedAt)

	err = s.AppendAuditEvent(ctx, models.AuditEvent{OrganisationID: uuid.New(), Action: "x"})
	assert.True(t, sserr.HasCode(err, sserr.CodeNotFoundOrganisation))
}

func TestStore_WithTxCommits(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	org, _ := models.NewOrganisation("Acme")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateOrganisation(ctx, org); err != nil {
			return err
		}
		return tx.CreateUser(ctx, mustUser(t, org.ID, "ada@example.com", models.RoleOwner))
	})
	require.NoError(t, err)

	_, err = s.FindUserByEmail(ctx, org.ID, "ada@example.com")
	assert.NoError(t, err)
}

func TestStore_WithTxRollsBack(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	org, _ := models.NewOrganisation("Acme")
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.CreateOrganisation(ctx, org))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetOrganisation(ctx, org.ID)
	assert.True(t, sserr.HasCode(err, sserr.CodeNotFoundOrganisation))
}

func TestStore_ConcurrentWrites(t *testing.T) {
	t.Parallel()
	s, org := newStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.AppendAuditEvent(ctx, models.AuditEvent{OrganisationID: org.ID, Action: "tick"})
			_, _ = s.ListAuditEvents(ctx, org.ID, 0)
		}()
	}
	wg.Wait()

	events, err := s.ListAuditEvents(ctx, org.ID, 0)
	require.NoError(t, err)
	assert.Len(t, events, 20)
}

func TestStore_Ping(t *testing.T) {
	t.Parallel()
	assert.NoError(t, New().Ping(context.Background()))
}
