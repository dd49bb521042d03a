package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	MetricsNamespace       = "semanticrouter"
	MetricsSubsystemSystem = "system"
	MetricsSubsystemHTTP   = "http"
	MetricsSubsystemCache  = "cache"
	MetricsSubsystemLLM    = "fallback"

	MetricsVersionLabel = "version"
)

// Lookup outcomes recorded by ObserveLookup.
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

type Metrics interface {
	GetRegistry() *prometheus.Registry

	ObserveAPIEndpointDuration(handler, method, statusCode string, elapsed float64)
	IncrementHTTPRequests()

	// ObserveLookup records one router lookup. scored is false when no nearest
	// entry was found, and score is then ignored.
	ObserveLookup(outcome string, score float64, scored bool)
	ObserveFallback(reason string, elapsed float64)
	IncrementCoalesced()
	SetIndexEntries(n int)
}

type InstanceInfo struct {
	Version string
}

type metrics struct {
	registry *prometheus.Registry

	startTime prometheus.Gauge
	info      prometheus.Gauge

	apiTime           *prometheus.HistogramVec
	httpRequestsTotal prometheus.Counter

	lookupsTotal   *prometheus.CounterVec
	scores         prometheus.Histogram
	indexEntries   prometheus.Gauge
	coalescedTotal prometheus.Counter

	fallbackTotal *prometheus.CounterVec
	fallbackTime  prometheus.Histogram
}

// NewMetrics creates a collector with its own registry.
func NewMetrics(info InstanceInfo) Metrics {
	m := &metrics{}

	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{
		Namespace: MetricsNamespace,
	}))
	m.registry.MustRegister(collectors.NewGoCollector())

	m.startTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemSystem,
		Name:      "start_timestamp_seconds",
		Help:      "The time the router started.",
	})
	m.startTime.SetToCurrentTime()
	m.registry.MustRegister(m.startTime)

	m.info = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   MetricsNamespace,
		Subsystem:   MetricsSubsystemSystem,
		Name:        "info",
		Help:        "The router version.",
		ConstLabels: map[string]string{MetricsVersionLabel: info.Version},
	})
	m.info.Set(1)
	m.registry.MustRegister(m.info)

	m.apiTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystemHTTP,
			Name:      "time_seconds",
			Help:      "Time to execute the http handler",
		},
		[]string{"handler", "method", "status_code"},
	)
	m.registry.MustRegister(m.apiTime)

	m.httpRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemHTTP,
		Name:      "requests_total",
		Help:      "The total number of http requests.",
	})
	m.registry.MustRegister(m.httpRequestsTotal)

	m.lookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemCache,
		Name:      "lookups_total",
		Help:      "The total number of cache lookups by outcome.",
	}, []string{"outcome"})
	m.registry.MustRegister(m.lookupsTotal)

	m.scores = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemCache,
		Name:      "best_score",
		Help:      "Similarity of the nearest entry for each lookup.",
		Buckets:   prometheus.LinearBuckets(-1, 0.1, 21),
	})
	m.registry.MustRegister(m.scores)

	m.indexEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemCache,
		Name:      "entries",
		Help:      "The number of entries in the similarity index.",
	})
	m.registry.MustRegister(m.indexEntries)

	m.coalescedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemCache,
		Name:      "coalesced_total",
		Help:      "The total number of misses that shared another request's fallback call.",
	})
	m.registry.MustRegister(m.coalescedTotal)

	m.fallbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemLLM,
		Name:      "requests_total",
		Help:      "The total number of fallback calls by failure reason.",
	}, []string{"reason"})
	m.registry.MustRegister(m.fallbackTotal)

	m.fallbackTime = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemLLM,
		Name:      "time_seconds",
		Help:      "Time spent waiting on the fallback.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
	})
	m.registry.MustRegister(m.fallbackTime)

	return m
}

func (m *metrics) GetRegistry() *prometheus.Registry {
	return m.registry
}

func (m *metrics) ObserveAPIEndpointDuration(handler, method, statusCode string, elapsed float64) {
	if m != nil {
		m.apiTime.With(prometheus.Labels{"handler": handler, "method": method, "status_code": statusCode}).Observe(elapsed)
	}
}

func (m *metrics) IncrementHTTPRequests() {
	if m != nil {
		m.httpRequestsTotal.Inc()
	}
}

func (m *metrics) ObserveLookup(outcome string, score float64, scored bool) {
	if m == nil {
		return
	}
	m.lookupsTotal.With(prometheus.Labels{"outcome": outcome}).Inc()
	if scored {
		m.scores.Observe(score)
	}
}

func (m *metrics) ObserveFallback(reason string, elapsed float64) {
	if m != nil {
		m.fallbackTotal.With(prometheus.Labels{"reason": reason}).Inc()
		m.fallbackTime.Observe(elapsed)
	}
}

func (m *metrics) IncrementCoalesced() {
	if m != nil {
		m.coalescedTotal.Inc()
	}
}

func (m *metrics) SetIndexEntries(n int) {
	if m != nil {
		m.indexEntries.Set(float64(n))
	}
}
