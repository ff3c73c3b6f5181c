// Package memory is an in-process implementation of store.Store.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
	"github.com/StricklySoft/whisper-grc/pkg/models"
	"github.com/StricklySoft/whisper-grc/pkg/store"
)

type data struct {
	orgs   map[uuid.UUID]models.Organisation
	users  map[uuid.UUID]models.UserAccount
	events []models.AuditEvent
}

func (d *data) clone() *data {
	c := &data{
		orgs:   make(map[uuid.UUID]models.Organisation, len(d.orgs)),
		users:  make(map[uuid.UUID]models.UserAccount, len(d.users)),
		events: slices.Clone(d.events),
	}
	for k, v := range d.orgs {
		c.orgs[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	return c
}

// Store keeps everything in memory. Transactions are serialised and work
// on a copy that replaces the committed state on success.
type Store struct {
	mu  sync.RWMutex
	d   *data
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		d:   &data{orgs: map[uuid.UUID]models.Organisation{}, users: map[uuid.UUID]models.UserAccount{}},
		now: time.Now,
	}
}

// WithClock sets the clock used for CreatedAt timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.d.clone()
	if err := fn(&txView{d: work, now: s.now}); err != nil {
		return err
	}
	s.d = work
	return nil
}

func (s *Store) write(fn func(v *txView) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&txView{d: s.d, now: s.now})
}

func (s *Store) read() *txView {
	return &txView{d: s.d, now: s.now}
}

func (s *Store) CreateOrganisation(ctx context.Context, org *models.Organisation) error {
	return s.write(func(v *txView) error { return v.CreateOrganisation(ctx, org) })
}

func (s *Store) GetOrganisation(ctx context.Context, id uuid.UUID) (*models.Organisation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetOrganisation(ctx, id)
}

func (s *Store) CreateUser(ctx context.Context, user *models.UserAccount) error {
	return s.write(func(v *txView) error { return v.CreateUser(ctx, user) })
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetUser(ctx, id)
}

func (s *Store) FindUserByEmail(ctx context.Context, organisationID uuid.UUID, email string) (*models.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().FindUserByEmail(ctx, organisationID, email)
}

func (s *Store) ListUsers(ctx context.Context, organisationID uuid.UUID) ([]*models.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListUsers(ctx, organisationID)
}

func (s *Store) AppendAuditEvent(ctx context.Context, ev models.AuditEvent) error {
	return s.write(func(v *txView) error { return v.AppendAuditEvent(ctx, ev) })
}

func (s *Store) ListAuditEvents(ctx context.Context, organisationID uuid.UUID, limit int) ([]models.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListAuditEvents(ctx, organisationID, limit)
}

// txView operates on one data snapshot. The caller holds the lock.
type txView struct {
	d   *data
	now func() time.Time
}

func (v *txView) CreateOrganisation(_ context.Context, org *models.Organisation) error {
	if _, exists := v.d.orgs[org.ID]; exists {
		return sserr.New(sserr.CodeConflictAlreadyExists, "organisation already exists")
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = v.now().UTC()
	}
	v.d.orgs[org.ID] = *org
	return nil
}

func (v *txView) GetOrganisation(_ context.Context, id uuid.UUID) (*models.Organisation, error) {
	org, ok := v.d.orgs[id]
	if !ok {
		return nil, sserr.New(sserr.CodeNotFoundOrganisation, "Organisation not found")
	}
	return &org, nil
}

func (v *txView) CreateUser(_ context.Context, user *models.UserAccount) error {
	if _, ok := v.d.orgs[user.OrganisationID]; !ok {
		return sserr.New(sserr.CodeNotFoundOrganisation, "Organisation not found")
	}
	if _, exists := v.d.users[user.ID]; exists {
		return sserr.New(sserr.CodeConflictAlreadyExists, "user account already exists")
	}
	for _, u := range v.d.users {
		if u.OrganisationID == user.OrganisationID && u.Email == user.Email {
			return sserr.New(sserr.CodeConflictAlreadyExists, "Email already exists for organisation")
		}
	}
	if user.Role == "" {
		user.Role = models.DefaultRole
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = v.now().UTC()
	}
	v.d.users[user.ID] = *user
	return nil
}

func (v *txView) GetUser(_ context.Context, id uuid.UUID) (*models.UserAccount, error) {
	u, ok := v.d.users[id]
	if !ok {
		return nil, sserr.New(sserr.CodeNotFoundUser, "User not found")
	}
	return &u, nil
}

func (v *txView) FindUserByEmail(_ context.Context, organisationID uuid.UUID, email string) (*models.UserAccount, error) {
	for _, u := range v.d.users {
		if u.OrganisationID == organisationID && u.Email == email {
			return &u, nil
		}
	}
	return nil, sserr.New(sserr.CodeNotFoundUser, "User not found")
}

func (v *txView) ListUsers(_ context.Context, organisationID uuid.UUID) ([]*models.UserAccount, error) {
	var out []*models.UserAccount
	for _, u := range v.d.users {
		if u.OrganisationID == organisationID {
			out = append(out, &u)
		}
	}
	slices.SortFunc(out, func(a, b *models.UserAccount) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Email, b.Email)
	})
	return out, nil
}

func (v *txView) AppendAuditEvent(_ context.Context, ev models.AuditEvent) error {
	if _, ok := v.d.orgs[ev.OrganisationID]; !ok {
		return sserr.New(sserr.CodeNotFoundOrganisation, "Organisation not found")
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = v.now().UTC()
	}
	v.d.events = append(v.d.events, ev)
	return nil
}

// ListAuditEvents returns the newest events first.
func (v *txView) ListAuditEvents(_ context.Context, organisationID uuid.UUID, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = store.DefaultAuditListLimit
	}
	var out []models.AuditEvent
	for i := len(v.d.events) - 1; i >= 0 && len(out) < limit; i-- {
		if v.d.events[i].OrganisationID == organisationID {
			out = append(out, v.d.events[i])
		}
	}
	return out, nil
}
