package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Migration outcomes recorded by storefront_wishlist_migrations_total.
const (
	migrationMigrated = "migrated"
	migrationFailed   = "failed"
	migrationSkipped  = "skipped"
)

// Metrics counts wishlist sync outcomes. A nil *Metrics records nothing.
type Metrics struct {
	rollbacks  prometheus.Counter
	migrations *prometheus.CounterVec
	sessions   prometheus.Gauge
}

// NewMetrics creates the engine collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_wishlist_rollbacks_total",
			Help: "Optimistic wishlist toggles undone after a remote failure",
		}),
		migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_wishlist_migrations_total",
			Help: "Guest wishlist migrations on sign-in by result",
		}, []string{"result"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_sessions_active",
			Help: "Sessions currently held in memory",
		}),
	}

	var err error
	if m.rollbacks, err = register(reg, m.rollbacks); err != nil {
		return nil, err
	}
	if m.migrations, err = register(reg, m.migrations); err != nil {
		return nil, err
	}
	if m.sessions, err = register(reg, m.sessions); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, reusing the collector already registered under
// the same name so every registry shares one set of counters.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return c, err
		}
		existing, ok := are.ExistingCollector.(C)
		if !ok {
			return c, err
		}
		return existing, nil
	}
	return c, nil
}

func (m *Metrics) rollback() {
	if m != nil {
		m.rollbacks.Inc()
	}
}

func (m *Metrics) migration(result string) {
	if m != nil {
		m.migrations.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) activeSessions(n int) {
	if m != nil {
		m.sessions.Set(float64(n))
	}
}
