package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
)

const tracerName = "github.com/StricklySoft/whisper-grc/pkg/lifecycle"

// Hook is run during Start or Stop.
type Hook func(ctx context.Context) error

// StateChangeHandler observes transitions. It runs synchronously with the
// state lock released.
type StateChangeHandler func(old, new State)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// OnStart appends a start hook. Start hooks run in registration order.
func OnStart(hook Hook) Option {
	return func(s *Service) { s.onStart = append(s.onStart, hook) }
}

// OnStop appends a stop hook. Stop hooks run in reverse registration
// order, and all of them run even if one fails.
func OnStop(hook Hook) Option {
	return func(s *Service) { s.onStop = append(s.onStop, hook) }
}

// OnStateChange registers a transition observer.
func OnStateChange(h StateChangeHandler) Option {
	return func(s *Service) { s.handlers = append(s.handlers, h) }
}

// Service is safe for concurrent use.
type Service struct {
	name    string
	version string

	mu        sync.RWMutex
	state     State
	startedAt time.Time

	tracer   trace.Tracer
	logger   *slog.Logger
	onStart  []Hook
	onStop   []Hook
	handlers []StateChangeHandler
}

// New returns a Service in StateUnknown.
func New(name, version string, opts ...Option) *Service {
	s := &Service{
		name:    name,
		version: version,
		state:   StateUnknown,
		tracer:  otel.Tracer(tracerName),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the service name.
func (s *Service) Name() string { return s.name }

// Version returns the service version.
func (s *Service) Version() string { return s.version }

// State returns the current state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Uptime returns the time since the service reached StateRunning, or zero.
func (s *Service) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateRunning {
		return 0
	}
	return time.Since(s.startedAt)
}

// Health returns nil only while the service is running.
func (s *Service) Health(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return sserr.Wrap(err, sserr.CodeTimeout, "lifecycle: health check canceled")
	}
	if st := s.State(); st != StateRunning {
		return sserr.Newf(sserr.CodeUnavailable, "lifecycle: service is %s", st)
	}
	return nil
}

func (s *Service) transition(to State) error {
	s.mu.Lock()
	from := s.state
	if !ValidTransition(from, to) {
		s.mu.Unlock()
		return sserr.Newf(sserr.CodeConflict, "lifecycle: invalid transition from %s to %s", from, to)
	}
	s.state = to
	if to == StateRunning {
		s.startedAt = time.Now()
	}
	s.mu.Unlock()

	for _, h := range s.handlers {
		h(from, to)
	}
	return nil
}

// Start runs the start hooks and moves the service to StateRunning. If a
// hook fails the service moves to StateFailed and the hooks registered
// with OnStop are not run; the caller decides whether to clean up.
func (s *Service) Start(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "lifecycle.Start")
	defer func() { endSpan(span, err) }()

	if err := ctx.Err(); err != nil {
		return sserr.Wrap(err, sserr.CodeTimeout, "lifecycle: start canceled")
	}
	if err := s.transition(StateStarting); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "starting service", "service", s.name, "version", s.version)

	for _, hook := range s.onStart {
		if err := hook(ctx); err != nil {
			s.logger.ErrorContext(ctx, "start hook failed", "service", s.name, "error", err)
			_ = s.transition(StateFailed)
			if _, ok := sserr.AsError(err); ok {
				return err
			}
			return sserr.Wrap(err, sserr.CodeInternal, "lifecycle: start hook failed")
		}
	}
	if err := s.transition(StateRunning); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "service started", "service", s.name)
	return nil
}

// Stop runs the stop hooks and moves the service to StateStopped. Calling
// Stop on a terminal service is a no-op.
func (s *Service) Stop(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "lifecycle.Stop")
	defer func() { endSpan(span, err) }()

	if s.State().IsTerminal() {
		return nil
	}
	if err := s.transition(StateStopping); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "stopping service", "service", s.name)

	var errs []error
	for i := len(s.onStop) - 1; i >= 0; i-- {
		if err := s.onStop[i](ctx); err != nil {
			s.logger.ErrorContext(ctx, "stop hook failed", "service", s.name, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		_ = s.transition(StateFailed)
		return sserr.Wrap(errors.Join(errs...), sserr.CodeInternal, "lifecycle: stop hook failed")
	}
	if err := s.transition(StateStopped); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "service stopped", "service", s.name)
	return nil
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.name", s.name),
			attribute.String("service.version", s.version),
		))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
