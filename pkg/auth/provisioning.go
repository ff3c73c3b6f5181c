package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
	"github.com/StricklySoft/whisper-grc/pkg/models"
)

// UserDirectory reads provisioned user accounts. Both methods return an
// error with sserr.CodeNotFoundUser when no account matches.
type UserDirectory interface {
	// FindUserByEmail matches email exactly within one organisation.
	FindUserByEmail(ctx context.Context, organisationID uuid.UUID, email string) (*models.UserAccount, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.UserAccount, error)
}

// FindProvisionedUser maps a verified identity to an account in
// organisationID. The email claim is tried first, then the subject as an
// email, since some providers put the address in sub. Blank candidates are
// skipped. Returns sserr.CodeNotFoundUser when neither matches.
func FindProvisionedUser(ctx context.Context, users UserDirectory, organisationID uuid.UUID, email, subject string) (*models.UserAccount, error) {
	tried := ""
	for _, candidate := range []string{email, subject} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" || candidate == tried {
			continue
		}
		tried = candidate

		account, err := users.FindUserByEmail(ctx, organisationID, candidate)
		if err == nil {
			return account, nil
		}
		if !sserr.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, sserr.New(sserr.CodeNotFoundUser, "auth: no account matches the token identity")
}
