package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
	"github.com/StricklySoft/whisper-grc/pkg/models"
)

func TestFindProvisionedUser(t *testing.T) {
	t.Parallel()
	orgID := uuid.New()

	t.Run("email claim wins", func(t *testing.T) {
		t.Parallel()
		users := &fakeDirectory{}
		byEmail := users.add(orgID, "alice@example.com", models.RoleMember)
		users.add(orgID, "alice-sub@example.com", models.RoleMember)

		got, err := FindProvisionedUser(context.Background(), users, orgID, "alice@example.com", "alice-sub@example.com")
		require.NoError(t, err)
		assert.Equal(t, byEmail.ID, got.ID)
		assert.Equal(t, []string{"alice@example.com"}, users.lookups)
	})

	t.Run("falls back to subject", func(t *testing.T) {
		t.Parallel()
		users := &fakeDirectory{}
		bySub := users.add(orgID, "bob@example.com", models.RoleAuditor)

		got, err := FindProvisionedUser(context.Background(), users, orgID, "other@example.com", "bob@example.com")
		require.NoError(t, err)
		assert.Equal(t, bySub.ID, got.ID)
		assert.Equal(t, []string{"other@example.com", "bob@example.com"}, users.lookups)
	})

	t.Run("blank and repeated candidates are skipped", func(t *testing.T) {
		t.Parallel()
		users := &fakeDirectory{}

		_, err := FindProvisionedUser(context.Background(), users, orgID, "", "  ")
		assert.True(t, sserr.HasCode(err, sserr.CodeNotFoundUser))
		assert.Empty(t, users.lookups)

		_, err = FindProvisionedUser(context.Background(), users, orgID, "x@example.com", "x@example.com")
		assert.True(t, sserr.IsNotFound(err))
		assert.Equal(t, []string{"x@example.com"}, users.lookups)
	})

	t.Run("other errors stop the lookup", func(t *testing.T) {
		t.Parallel()
		users := &fakeDirectory{err: sserr.New(sserr.CodeInternalDatabase, "down")}

		_, err := FindProvisionedUser(context.Background(), users, orgID, "a@example.com", "b@example.com")
		assert.True(t, sserr.HasCode(err, sserr.CodeInternalDatabase))
		assert.Len(t, users.lookups, 1)
	})
}
