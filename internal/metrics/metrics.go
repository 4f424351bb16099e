package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the token lifecycle. All methods are
// nil-safe so callers can run without a registry (tests pass nil).
type Metrics struct {
	TokensIssued  *prometheus.CounterVec
	TokensRevoked prometheus.Counter
	TokensPruned  prometheus.Counter
	LoginAttempts *prometheus.CounterVec
}

// New registers every token lifecycle metric in the default registry.
func New() *Metrics {
	return &Metrics{
		TokensIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "storeapi_tokens_issued_total",
			Help: "Total tokens minted and recorded, by token type",
		}, []string{"type"}), // type: "access", "refresh"

		TokensRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "storeapi_tokens_revoked_total",
			Help: "Total tokens explicitly revoked",
		}),

		TokensPruned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "storeapi_tokens_pruned_total",
			Help: "Total expired ledger rows removed by pruning",
		}),

		LoginAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "storeapi_login_attempts_total",
			Help: "Total login attempts by result",
		}, []string{"result"}), // result: "ok", "rejected"
	}
}

func (m *Metrics) IncIssued(tokenType string) {
	if m != nil {
		m.TokensIssued.WithLabelValues(tokenType).Inc()
	}
}

func (m *Metrics) IncRevoked() {
	if m != nil {
		m.TokensRevoked.Inc()
	}
}

func (m *Metrics) AddPruned(n int64) {
	if m != nil {
		m.TokensPruned.Add(float64(n))
	}
}

func (m *Metrics) IncLogin(result string) {
	if m != nil {
		m.LoginAttempts.WithLabelValues(result).Inc()
	}
}
