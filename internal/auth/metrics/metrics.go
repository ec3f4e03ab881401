package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts authentication outcomes.
type Metrics struct {
	Logins          *prometheus.CounterVec
	Refreshes       *prometheus.CounterVec
	ReplayDetected  prometheus.Counter
	ExpiredSwept    prometheus.Counter
	SessionsRevoked prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_auth_logins_total",
			Help: "Password logins by outcome",
		}, []string{"outcome"}),
		Refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_auth_refreshes_total",
			Help: "Refresh token rotations by outcome",
		}, []string{"outcome"}),
		ReplayDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "portal_auth_refresh_replay_total",
			Help: "Reuse of an already rotated refresh token",
		}),
		ExpiredSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "portal_auth_refresh_tokens_swept_total",
			Help: "Expired refresh tokens removed by the sweeper",
		}),
		SessionsRevoked: factory.NewCounter(prometheus.CounterOpts{
			Name: "portal_auth_sessions_revoked_total",
			Help: "Refresh sessions ended by logout or replay",
		}),
	}
}

func (m *Metrics) IncrementLogin(outcome string) {
	m.Logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementRefresh(outcome string) {
	m.Refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementReplay() {
	m.ReplayDetected.Inc()
}

func (m *Metrics) AddSwept(n int) {
	m.ExpiredSwept.Add(float64(n))
}

func (m *Metrics) IncrementSessionRevoked() {
	m.SessionsRevoked.Inc()
}
