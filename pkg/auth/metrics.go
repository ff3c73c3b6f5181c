package auth

import (
	"github.com/prometheus/client_golang/prometheus"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
)

// Outcome label values.
const (
	outcomeOK      = "ok"
	outcomeAllowed = "allowed"
	outcomeDenied  = "denied"
	outcomeError   = "error"
)

// Key set lookup label values.
const (
	keySetHit     = "hit"
	keySetShared  = "shared"
	keySetFetched = "fetched"
	keySetFailed  = "failed"
)

// Metrics counts authentication and authorization decisions. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	// ActorResolutions counts resolver outcomes by mode and error code.
	ActorResolutions *prometheus.CounterVec

	// KeySetLookups counts key set reads by source.
	KeySetLookups *prometheus.CounterVec

	// Decisions counts gate outcomes by action.
	Decisions *prometheus.CounterVec
}

// NewMetrics creates the auth counters and registers them with reg when
// reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActorResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whisper_auth_actor_resolutions_total",
				Help: "Actor resolutions by authentication mode and outcome",
			},
			[]string{"mode", "outcome", "code"},
		),
		KeySetLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whisper_auth_jwks_lookups_total",
				Help: "Signing key set lookups by result",
			},
			[]string{"result"},
		),
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whisper_authz_decisions_total",
				Help: "Authorization gate decisions by action and outcome",
			},
			[]string{"action", "outcome", "code"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.ActorResolutions, m.KeySetLookups, m.Decisions)
	}
	return m
}

func (m *Metrics) resolution(mode Mode, err error) {
	if m == nil {
		return
	}
	outcome, code := outcomeOf(err, outcomeOK)
	m.ActorResolutions.WithLabelValues(string(mode), outcome, code).Inc()
}

func (m *Metrics) keySet(result string) {
	if m == nil {
		return
	}
	m.KeySetLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) decision(action Action, err error) {
	if m == nil {
		return
	}
	outcome, code := outcomeOf(err, outcomeAllowed)
	m.Decisions.WithLabelValues(action.String(), outcome, code).Inc()
}

// outcomeOf classifies err for metric labels. Client-caused rejections are
// "denied"; everything else is "error".
func outcomeOf(err error, success string) (outcome, code string) {
	if err == nil {
		return success, ""
	}
	code = string(sserr.GetCode(err))
	if sserr.IsValidation(err) || sserr.IsAuthentication(err) || sserr.IsAuthorization(err) {
		return outcomeDenied, code
	}
	return outcomeError, code
}
