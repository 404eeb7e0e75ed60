// Package metrics exports engine counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reverie"

// Recorder holds the collectors the engine updates. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	conceptsAdded    *prometheus.CounterVec
	conceptsRemoved  *prometheus.CounterVec
	retrievals       *prometheus.CounterVec
	retrievalLatency *prometheus.HistogramVec
	impactCalls      *prometheus.CounterVec
	embeddingCache   *prometheus.CounterVec
	perceptions      prometheus.Counter
	agents           prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.conceptsAdded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "memory",
		Name:      "concepts_added_total",
		Help:      "Concepts added, by memory and kind",
	}, []string{"memory", "kind"})

	r.conceptsRemoved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "memory",
		Name:      "concepts_removed_total",
		Help:      "Concepts removed, by memory",
	}, []string{"memory"})

	r.retrievals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "memory",
		Name:      "retrievals_total",
		Help:      "Retrieval calls, by memory and status",
	}, []string{"memory", "status"})

	r.retrievalLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "memory",
		Name:      "retrieval_latency_seconds",
		Help:      "Retrieval latency including focal point embedding",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"memory"})

	r.impactCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "providers",
		Name:      "impact_calls_total",
		Help:      "Impact provider calls, by outcome",
	}, []string{"outcome"})

	r.embeddingCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "providers",
		Name:      "embedding_cache_total",
		Help:      "Embedding cache lookups, by result",
	}, []string{"result"})

	r.perceptions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "perceptions_total",
		Help:      "Facts received through perceive",
	})

	r.agents = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "agents_loaded",
		Help:      "Agents currently held in memory",
	})

	r.registry.MustRegister(
		r.conceptsAdded, r.conceptsRemoved, r.retrievals, r.retrievalLatency,
		r.impactCalls, r.embeddingCache, r.perceptions, r.agents,
	)
	return r
}

// Handler serves the registry for scraping.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ConceptAdded(memory, kind string) {
	if r == nil {
		return
	}
	r.conceptsAdded.WithLabelValues(memory, kind).Inc()
}

func (r *Recorder) ConceptRemoved(memory string) {
	if r == nil {
		return
	}
	r.conceptsRemoved.WithLabelValues(memory).Inc()
}

// Retrieval records one retrieval call and how long it took.
func (r *Recorder) Retrieval(memory string, took time.Duration, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.retrievals.WithLabelValues(memory, status).Inc()
	r.retrievalLatency.WithLabelValues(memory).Observe(took.Seconds())
}

// ImpactCall records an impact provider outcome: "ok", "fallback" or "error".
func (r *Recorder) ImpactCall(outcome string) {
	if r == nil {
		return
	}
	r.impactCalls.WithLabelValues(outcome).Inc()
}

func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.embeddingCache.WithLabelValues(result).Inc()
}

func (r *Recorder) Perceived(n int) {
	if r == nil {
		return
	}
	r.perceptions.Add(float64(n))
}

func (r *Recorder) AgentsLoaded(n int) {
	if r == nil {
		return
	}
	r.agents.Set(float64(n))
}
