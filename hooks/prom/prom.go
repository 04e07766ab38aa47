// Package promhook exports guardcache.Hooks events as Prometheus counters.
package promhook

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/guardcache"
)

type Hooks struct {
	lookups      *prometheus.CounterVec
	corrupt      *prometheus.CounterVec
	backendErrs  *prometheus.CounterVec
	lockFallback prometheus.Counter
	degraded     *prometheus.CounterVec
	stored       *prometheus.CounterVec
	storedTTL    prometheus.Histogram
}

var _ guardcache.Hooks = (*Hooks)(nil)

// New registers the collectors on reg (prometheus.DefaultRegisterer when nil).
// namespace prefixes every metric name.
func New(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	h := &Hooks{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "lookups_total",
			Help: "First cache checks of GetOrSet by result.",
		}, []string{"ns", "result"}),
		corrupt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "corrupt_entries_total",
			Help: "Cached entries treated as misses.",
		}, []string{"reason"}),
		backendErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "backend_errors_total",
			Help: "Swallowed backend failures by operation.",
		}, []string{"op"}),
		lockFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "lock_fallbacks_total",
			Help: "Fetches that ran without the lock after acquisition failed.",
		}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "degraded_total",
			Help: "Clients constructed without a backend.",
		}, []string{"backend"}),
		stored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "stored_total",
			Help: "Entries written by kind.",
		}, []string{"kind"}),
		storedTTL: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "cache", Name: "stored_ttl_seconds",
			Help:    "TTL of written entries.",
			Buckets: []float64{1, 10, 60, 300, 600, 1800, 3600, 86400},
		}),
	}
	for _, c := range []prometheus.Collector{
		h.lookups, h.corrupt, h.backendErrs, h.lockFallback, h.degraded, h.stored, h.storedTTL,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) Hit(ns string)                   { h.lookups.WithLabelValues(ns, "hit").Inc() }
func (h *Hooks) Miss(ns string)                  { h.lookups.WithLabelValues(ns, "miss").Inc() }
func (h *Hooks) Corrupt(_, reason string)        { h.corrupt.WithLabelValues(reason).Inc() }
func (h *Hooks) BackendError(op string, _ error) { h.backendErrs.WithLabelValues(op).Inc() }
func (h *Hooks) LockFallback(string, error)      { h.lockFallback.Inc() }
func (h *Hooks) Degraded(backend string)         { h.degraded.WithLabelValues(backend).Inc() }

func (h *Hooks) Stored(_ string, null bool, ttl time.Duration) {
	kind := "value"
	if null {
		kind = "null"
	}
	h.stored.WithLabelValues(kind).Inc()
	h.storedTTL.Observe(ttl.Seconds())
}
