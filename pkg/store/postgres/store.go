// Package postgres implements store.Store on PostgreSQL through the
// instrumented client in pkg/clients/postgres.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	pgclient "github.com/StricklySoft/whisper-grc/pkg/clients/postgres"
	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
	"github.com/StricklySoft/whisper-grc/pkg/models"
	"github.com/StricklySoft/whisper-grc/pkg/store"
)

// Schema creates the tables if they do not exist. It is idempotent.
//
//go:embed schema.sql
var Schema string

const (
	insertOrganisation = `INSERT INTO organisation (id, name, created_at) VALUES ($1, $2, $3)`
	selectOrganisation = `SELECT id, name, created_at FROM organisation WHERE id = $1`

	userColumns = `id, organisation_id, email, COALESCE(display_name, ''), role, created_at`
	insertUser  = `INSERT INTO user_account (id, organisation_id, email, display_name, role, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)`
	selectUserByID    = `SELECT ` + userColumns + ` FROM user_account WHERE id = $1`
	selectUserByEmail = `SELECT ` + userColumns + ` FROM user_account WHERE organisation_id = $1 AND email = $2`
	selectUsers       = `SELECT ` + userColumns + ` FROM user_account WHERE organisation_id = $1 ORDER BY created_at, email`

	insertAuditEvent = `INSERT INTO audit_event
		(id, organisation_id, actor_user_id, action, entity_type, entity_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	selectAuditEvents = `SELECT id, organisation_id, actor_user_id, action, entity_type, entity_id, metadata, created_at
		FROM audit_event WHERE organisation_id = $1 ORDER BY created_at DESC, id LIMIT $2`
)

// Store is safe for concurrent use.
type Store struct {
	queries
	client *pgclient.Client
}

var _ store.Store = (*Store)(nil)

// New returns a Store backed by client.
func New(client *pgclient.Client) *Store {
	return &Store{
		queries: queries{q: client, now: time.Now},
		client:  client,
	}
}

// WithClock sets the clock used for CreatedAt timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.client.Exec(ctx, Schema); err != nil {
		return pgclient.WrapError(err, "store: failed to apply schema")
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.client.InTx(ctx, func(tx pgx.Tx) error {
		return fn(queries{q: tx, now: s.now})
	})
}

// queries runs statements against a client or an open transaction.
type queries struct {
	q   pgclient.Querier
	now func() time.Time
}

func (q queries) CreateOrganisation(ctx context.Context, org *models.Organisation) error {
	if org.CreatedAt.IsZero() {
		org.CreatedAt = q.now().UTC()
	}
	if _, err := q.q.Exec(ctx, insertOrganisation, org.ID, org.Name, org.CreatedAt); err != nil {
		return pgclient.WrapError(err, "store: failed to create organisation")
	}
	return nil
}

func (q queries) GetOrganisation(ctx context.Context, id uuid.UUID) (*models.Organisation, error) {
	var org models.Organisation
	err := q.q.QueryRow(ctx, selectOrganisation, id).Scan(&org.ID, &org.Name, &org.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sserr.New(sserr.CodeNotFoundOrganisation, "Organisation not found")
	}
	if err != nil {
		return nil, pgclient.WrapError(err, "store: failed to load organisation")
	}
	return &org, nil
}

func (q queries) CreateUser(ctx context.Context, user *models.UserAccount) error {
	if user.Role == "" {
		user.Role = models.DefaultRole
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = q.now().UTC()
	}
	_, err := q.q.Exec(ctx, insertUser,
		user.ID, user.OrganisationID, user.Email, user.DisplayName, string(user.Role), user.CreatedAt)
	if err != nil {
		if pgclient.IsUniqueViolation(err) {
			return sserr.Wrap(err, sserr.CodeConflictAlreadyExists, "Email already exists for organisation")
		}
		if pgclient.IsForeignKeyViolation(err) {
			return sserr.Wrap(err, sserr.CodeNotFoundOrganisation, "Organisation not found")
		}
		return pgclient.WrapError(err, "store: failed to create user account")
	}
	return nil
}

func (q queries) GetUser(ctx context.Context, id uuid.UUID) (*models.UserAccount, error) {
	u, err := scanUser(q.q.QueryRow(ctx, selectUserByID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sserr.New(sserr.CodeNotFoundUser, "User not found")
	}
	if err != nil {
		return nil, pgclient.WrapError(err, "store: failed to load user account")
	}
	return u, nil
}

func (q queries) FindUserByEmail(ctx context.Context, organisationID uuid.UUID, email string) (*models.UserAccount, error) {
	u, err := scanUser(q.q.QueryRow(ctx, selectUserByEmail, organisationID, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sserr.New(sserr.CodeNotFoundUser, "User not found")
	}
	if err != nil {
		return nil, pgclient.WrapError(err, "store: failed to look up user account")
	}
	return u, nil
}

func (q queries) ListUsers(ctx context.Context, organisationID uuid.UUID) ([]*models.UserAccount, error) {
	rows, err := q.q.Query(ctx, selectUsers, organisationID)
	if err != nil {
		return nil, pgclient.WrapError(err, "store: failed to list user accounts")
	}
	defer rows.Close()

	var out []*models.UserAccount
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, pgclient.WrapError(err, "store: failed to read user account")
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, pgclient.WrapError(err, "store: failed to list user accounts")
	}
	return out, nil
}

func (q queries) AppendAuditEvent(ctx context.Context, ev models.AuditEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = q.now().UTC()
	}
	metadata, err := encodeMetadata(ev.Metadata)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeInternal, "store: audit metadata is not JSON")
	}
	_, err = q.q.Exec(ctx, insertAuditEvent,
		ev.ID, ev.OrganisationID, ev.ActorUserID, ev.Action, ev.EntityType, ev.EntityID, metadata, ev.CreatedAt)
	if err != nil {
		return pgclient.WrapError(err, "store: failed to append audit event")
	}
	return nil
}

func (q queries) ListAuditEvents(ctx context.Context, organisationID uuid.UUID, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = store.DefaultAuditListLimit
	}
	rows, err := q.q.Query(ctx, selectAuditEvents, organisationID, limit)
	if err != nil {
		return nil, pgclient.WrapError(err, "store: failed to list audit events")
	}
	defer rows.Close()

	var out []models.AuditEvent
	for rows.Next() {
		var (
			ev       models.AuditEvent
			metadata []byte
		)
		if err := rows.Scan(&ev.ID, &ev.OrganisationID, &ev.ActorUserID, &ev.Action,
			&ev.EntityType, &ev.EntityID, &metadata, &ev.CreatedAt); err != nil {
			return nil, pgclient.WrapError(err, "store: failed to read audit event")
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &ev.Metadata); err != nil {
				return nil, sserr.Wrap(err, sserr.CodeInternalDatabase, "store: stored audit metadata is not JSON")
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, pgclient.WrapError(err, "store: failed to list audit events")
	}
	return out, nil
}

func scanUser(row pgx.Row) (*models.UserAccount, error) {
	var (
		u    models.UserAccount
		role string
	)
	if err := row.Scan(&u.ID, &u.OrganisationID, &u.Email, &u.DisplayName, &role, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

func encodeMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
