package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus collectors for the filmstrip server. It also
// satisfies rangefile.Observer so remote reads are counted without that
// package importing Prometheus.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal prometheus.Counter
	errorsTotal   prometheus.Counter

	filmstripsTotal     prometheus.Counter
	failuresTotal       *prometheus.CounterVec
	passDuration        *prometheus.HistogramVec
	segmentsTotal       prometheus.Counter
	generationsInFlight prometheus.Gauge
	storedFilmstrips    prometheus.Gauge

	rangeRequestsTotal prometheus.Counter
	rangeBytesTotal    prometheus.Counter
	cacheHitsTotal     prometheus.Counter
	cacheMissesTotal   prometheus.Counter
}

// New creates and registers Prometheus metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filmstrip_http_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filmstrip_http_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		filmstripsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filmstrip_generations_total",
			Help: "Total number of filmstrips generated successfully",
		}),
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "filmstrip_generation_failures_total",
			Help: "Total number of failed filmstrip generations by stage",
		}, []string{"stage"}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "filmstrip_pass_duration_seconds",
			Help:    "Duration of engine passes in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		segmentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filmstrip_segments_total",
			Help: "Total number of filmstrip segments extracted by probe passes",
		}),
		generationsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "filmstrip_generations_in_flight",
			Help: "Number of filmstrip generations currently running (0 or 1)",
		}),
		storedFilmstrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "filmstrip_stored",
			Help: "Number of filmstrips currently held by the server",
		}),
		rangeRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filmstrip_range_requests_total",
			Help: "Total number of byte-range GETs issued to origin servers",
		}),
		rangeBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filmstrip_range_bytes_total",
			Help: "Total number of bytes received from byte-range GETs",
		}),
		cacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filmstrip_range_cache_hits_total",
			Help: "Total number of remote reads served from the range cache window",
		}),
		cacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filmstrip_range_cache_misses_total",
			Help: "Total number of remote reads that required a new range GET",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.filmstripsTotal,
		m.failuresTotal,
		m.passDuration,
		m.segmentsTotal,
		m.generationsInFlight,
		m.storedFilmstrips,
		m.rangeRequestsTotal,
		m.rangeBytesTotal,
		m.cacheHitsTotal,
		m.cacheMissesTotal,
	)

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncGenerated records a completed filmstrip and the number of segments it carries.
func (m *Metrics) IncGenerated(segments int) {
	m.filmstripsTotal.Inc()
	m.segmentsTotal.Add(float64(segments))
}

// IncFailure records a failed generation for the given stage.
func (m *Metrics) IncFailure(stage string) {
	m.failuresTotal.WithLabelValues(stage).Inc()
}

// ObservePass records the duration of one engine pass.
func (m *Metrics) ObservePass(stage string, seconds float64) {
	m.passDuration.WithLabelValues(stage).Observe(seconds)
}

// SetGenerating flips the in-flight gauge.
func (m *Metrics) SetGenerating(running bool) {
	if running {
		m.generationsInFlight.Set(1)
		return
	}
	m.generationsInFlight.Set(0)
}

// SetStored sets the stored filmstrips gauge.
func (m *Metrics) SetStored(n int) {
	m.storedFilmstrips.Set(float64(n))
}

// CacheHit implements rangefile.Observer.
func (m *Metrics) CacheHit() {
	m.cacheHitsTotal.Inc()
}

// CacheMiss implements rangefile.Observer.
func (m *Metrics) CacheMiss() {
	m.cacheMissesTotal.Inc()
}

// RangeFetched implements rangefile.Observer.
func (m *Metrics) RangeFetched(bytes int64) {
	m.rangeRequestsTotal.Inc()
	m.rangeBytesTotal.Add(float64(bytes))
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. stored filmstrips).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
