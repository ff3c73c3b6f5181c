// Package httpapi exposes the Whisper GRC HTTP surface: health checks,
// metrics, bootstrap, whoami and the organisation-scoped routes guarded by
// the authorization gate.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/StricklySoft/whisper-grc/pkg/audit"
	"github.com/StricklySoft/whisper-grc/pkg/auth"
	"github.com/StricklySoft/whisper-grc/pkg/store"
)

// DefaultCORSOrigin is allowed when no origins are configured.
const DefaultCORSOrigin = "http://localhost:5173"

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// HealthChecker reports process readiness. *lifecycle.Service satisfies it.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Config wires the router's collaborators. Store, Gate and Audit are
// required.
type Config struct {
	Store store.Store
	Gate  *auth.Gate
	Audit *audit.Recorder

	// Health gates GET /health. When nil the endpoint always reports ok.
	Health HealthChecker

	// Gatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// TracerProvider receives one server span per routed request.
	// Defaults to the global provider.
	TracerProvider trace.TracerProvider

	CORSAllowOrigins []string
	Logger           *slog.Logger
}

// PathOrganisationID returns the organisation id route variable. Pass it
// as auth.GateConfig.PathOrganisationID for gates used with this router.
func PathOrganisationID(r *http.Request) string {
	return mux.Vars(r)["organisation_id"]
}

type api struct {
	store  store.Store
	gate   *auth.Gate
	audit  *audit.Recorder
	health HealthChecker
	logger *slog.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg Config) (http.Handler, error) {
	if cfg.Store == nil || cfg.Gate == nil || cfg.Audit == nil {
		return nil, errors.New("httpapi: store, gate and audit recorder are required")
	}
	a := &api{
		store:  cfg.Store,
		gate:   cfg.Gate,
		audit:  cfg.Audit,
		health: cfg.Health,
		logger: cfg.Logger,
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	traceOpts := []otelhttp.Option{otelhttp.WithSpanNameFormatter(routeSpanName)}
	if cfg.TracerProvider != nil {
		traceOpts = append(traceOpts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}

	r := mux.NewRouter()
	r.Use(otelhttp.NewMiddleware("whisper-api", traceOpts...))
	r.Use(requestLogger(a.logger))

	r.HandleFunc("/health", a.getHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/db", a.getHealthDB).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	// Method mismatches answer 405 only for routes on the root router.
	const orgPath = "/api/organisations/{organisation_id}"
	r.HandleFunc("/api/bootstrap", a.postBootstrap).Methods(http.MethodPost)
	r.Handle("/api/auth/whoami", a.gate.RequireActor(a.getWhoami)).Methods(http.MethodGet)
	r.Handle("/api/organisations", a.gate.RequirePermission(auth.ActionRead, a.createOrganisation)).Methods(http.MethodPost)
	r.Handle(orgPath, a.gate.RequirePermission(auth.ActionRead, a.getOrganisation)).Methods(http.MethodGet)
	r.Handle(orgPath+"/users", a.gate.RequirePermission(auth.ActionRead, a.listUsers)).Methods(http.MethodGet)
	r.Handle(orgPath+"/users", a.gate.RequirePermission(auth.ActionManageUsers, a.createUser)).Methods(http.MethodPost)
	r.Handle(orgPath+"/audit-events", a.gate.RequirePermission(auth.ActionRead, a.listAuditEvents)).Methods(http.MethodGet)

	origins := cfg.CORSAllowOrigins
	if len(origins) == 0 {
		origins = []string{DefaultCORSOrigin}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodDelete, http.MethodHead, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	})
	return c.Handler(r), nil
}

// routeSpanName names spans by route template so organisation ids do not
// end up in span names.
func routeSpanName(_ string, r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return r.Method + " " + tmpl
		}
	}
	return r.Method
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.DebugContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds())
		})
	}
}
