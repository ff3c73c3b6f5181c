package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/StricklySoft/whisper-grc/internal/httpapi"
	"github.com/StricklySoft/whisper-grc/pkg/audit"
	"github.com/StricklySoft/whisper-grc/pkg/auth"
	pgclient "github.com/StricklySoft/whisper-grc/pkg/clients/postgres"
	"github.com/StricklySoft/whisper-grc/pkg/clients/redis"
	"github.com/StricklySoft/whisper-grc/pkg/lifecycle"
	"github.com/StricklySoft/whisper-grc/pkg/store"
	"github.com/StricklySoft/whisper-grc/pkg/store/memory"
	pgstore "github.com/StricklySoft/whisper-grc/pkg/store/postgres"
	"github.com/StricklySoft/whisper-grc/pkg/telemetry"
)

const serviceName = "whisper-api"

// ServeCmd runs the HTTP API until SIGINT or SIGTERM.
type ServeCmd struct {
	AutoMigrate bool `help:"Apply the database schema on startup." env:"AUTO_MIGRATE"`
}

func (c *ServeCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := loadConfig(g, nil)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg, g.Debug)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Setup(ctx, cfg.Telemetry, serviceName, g.Version)
	if err != nil {
		return err
	}
	if tp != nil {
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(flushCtx); err != nil {
				logger.Warn("failed to flush traces", "error", err)
			}
		}()
		logger.Info("exporting traces", "otlp_endpoint", cfg.Telemetry.Endpoint)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := auth.NewMetrics(reg)

	st, closeStore, err := openStore(ctx, cfg, c.AutoMigrate, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var docs auth.DocumentStore
	if cfg.Redis.Enabled() {
		rc, err := connectWithRetry(ctx, logger, "redis", backoff.NewExponentialBackOff(), cfg.StartupRetryTimeout,
			func(ctx context.Context) (*redis.Client, error) { return redis.NewClient(ctx, cfg.Redis) })
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer func() { _ = rc.Close() }()
		docs = auth.NewSharedDocumentStore(rc)
		logger.Info("sharing signing key sets through redis")
	}

	recorder := audit.NewRecorder(st, audit.WithLogger(logger))
	resolver, err := auth.NewActorResolver(cfg.Auth, auth.ResolverDeps{
		Users:   st,
		Store:   docs,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}
	gate, err := auth.NewGate(auth.GateConfig{
		Resolver:           resolver,
		Users:              st,
		Audit:              recorder,
		Logger:             logger,
		Metrics:            metrics,
		PathOrganisationID: httpapi.PathOrganisationID,
	})
	if err != nil {
		return err
	}

	var srv *http.Server
	serveErr := make(chan error, 1)
	svc := lifecycle.New(serviceName, g.Version,
		lifecycle.WithLogger(logger),
		lifecycle.OnStart(func(context.Context) error {
			ln, err := net.Listen("tcp", cfg.HTTPAddr)
			if err != nil {
				return err
			}
			go func() { serveErr <- srv.Serve(ln) }()
			logger.Info("listening", "addr", ln.Addr().String(), "auth_mode", resolver.Mode())
			return nil
		}),
		lifecycle.OnStop(func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		}),
	)

	handler, err := httpapi.NewRouter(httpapi.Config{
		Store:            st,
		Gate:             gate,
		Audit:            recorder,
		Health:           svc,
		Gatherer:         reg,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
		Logger:           logger,
	})
	if err != nil {
		return err
	}
	srv = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	if err := svc.Start(ctx); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := svc.Stop(shutdownCtx); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// openStore returns the Postgres store when a database is configured and
// the memory store otherwise.
func openStore(ctx context.Context, cfg *AppConfig, migrate bool, logger *slog.Logger) (store.Store, func(), error) {
	if !cfg.Postgres.Enabled() {
		logger.Warn("no database configured, using the in-memory store")
		return memory.New(), func() {}, nil
	}
	client, err := connectWithRetry(ctx, logger, "postgres", backoff.NewExponentialBackOff(), cfg.StartupRetryTimeout,
		func(ctx context.Context) (*pgclient.Client, error) { return pgclient.NewClient(ctx, cfg.Postgres) })
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	st := pgstore.New(client)
	if migrate {
		if err := st.Migrate(ctx); err != nil {
			client.Close()
			return nil, nil, err
		}
		logger.Info("database schema applied")
	}
	return st, client.Close, nil
}
