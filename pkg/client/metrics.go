package client

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics are registered on a caller-supplied Registerer. Several clients
// may share one Registerer; they then share the collectors.
type metrics struct {
	lookups         *prometheus.CounterVec
	lookupDuration  prometheus.Histogram
	transportErrors *prometheus.CounterVec
	cacheHits       prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	lookups, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nnas_lookups_total",
		Help: "Total existence lookups by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nnas_lookup_duration_seconds",
		Help:    "Existence lookup round-trip duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}))
	if err != nil {
		return nil, err
	}
	transportErrors, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nnas_transport_errors_total",
		Help: "Total transport failures by kind.",
	}, []string{"kind"}))
	if err != nil {
		return nil, err
	}
	cacheHits, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nnas_lookup_cache_hits_total",
		Help: "Total existence lookups answered from the cache.",
	}))
	if err != nil {
		return nil, err
	}
	return &metrics{
		lookups:         lookups,
		lookupDuration:  duration,
		transportErrors: transportErrors,
		cacheHits:       cacheHits,
	}, nil
}

// register adds c to reg, reusing an identical collector that is already
// registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, &Error{Kind: KindConfig, Op: "register metrics", Err: err}
	}
	return c, nil
}

// observe records one completed lookup. A nil receiver records nothing.
func (m *metrics) observe(res LookupResult, d time.Duration) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(res.Outcome.String()).Inc()
	m.lookupDuration.Observe(d.Seconds())

	var e *Error
	if errors.As(res.Err, &e) && e.Kind == KindTransport {
		m.transportErrors.WithLabelValues(e.Transport.String()).Inc()
	}
}

func (m *metrics) cacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}
