// Package audit writes audit events. A Recorder persists events through an
// Appender and mirrors each one to a structured log; with no Appender it
// only logs.
//
// Inside a transaction, bind the recorder to the transaction with In so
// that events commit or roll back together with the change they describe:
//
//	err := st.WithTx(ctx, func(tx store.Tx) error {
//	    if err := tx.CreateUser(ctx, user); err != nil {
//	        return err
//	    }
//	    return rec.In(tx).Record(ctx, audit.UserCreated(actorID, user))
//	})
package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
	"github.com/StricklySoft/whisper-grc/pkg/models"
)

// Appender persists one audit event. store.AuditLog satisfies it.
type Appender interface {
	AppendAuditEvent(ctx context.Context, ev models.AuditEvent) error
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger events are mirrored to.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock sets the clock used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// Recorder is safe for concurrent use when its Appender is.
type Recorder struct {
	appender Appender
	logger   *slog.Logger
	now      func() time.Time
}

// NewRecorder returns a Recorder that appends to appender.
func NewRecorder(appender Appender, opts ...Option) *Recorder {
	r := &Recorder{
		appender: appender,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewLogRecorder returns a Recorder that only logs.
func NewLogRecorder(logger *slog.Logger) *Recorder {
	return NewRecorder(nil, WithLogger(logger))
}

// In returns a copy of r that appends to appender, typically a store.Tx.
func (r *Recorder) In(appender Appender) *Recorder {
	c := *r
	c.appender = appender
	return &c
}

// Record fills in ID and CreatedAt when unset, persists ev and logs it.
// Events without an organisation or action are rejected.
func (r *Recorder) Record(ctx context.Context, ev models.AuditEvent) error {
	if ev.OrganisationID == uuid.Nil {
		return sserr.New(sserr.CodeValidationRequired, "audit: organisation id is required")
	}
	if strings.TrimSpace(ev.Action) == "" {
		return sserr.New(sserr.CodeValidationRequired, "audit: action is required")
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now().UTC()
	}

	if r.appender != nil {
		if err := r.appender.AppendAuditEvent(ctx, ev); err != nil {
			return err
		}
	}

	attrs := []any{
		"audit_id", ev.ID.String(),
		"organisation_id", ev.OrganisationID.String(),
		"action", ev.Action,
		"entity_type", ev.EntityType,
		"entity_id", ev.EntityID,
	}
	if ev.ActorUserID.Valid {
		attrs = append(attrs, "actor_user_id", ev.ActorUserID.UUID.String())
	}
	r.logger.InfoContext(ctx, "audit event", attrs...)
	return nil
}
