// Package metrics exposes Prometheus collectors for the playback core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for tunebox
type Metrics struct {
	// Cache metrics
	CacheRequests *prometheus.CounterVec
	CacheEntries  *prometheus.GaugeVec

	// Queue metrics
	QueueSize *prometheus.GaugeVec

	// Voice metrics
	ReconnectAttempts *prometheus.CounterVec
	TracksStarted     prometheus.Counter

	// Extraction metrics
	ExtractionDuration prometheus.Histogram
	ExtractionFailures prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tunebox_cache_requests_total",
			Help: "Total number of cache lookups by result",
		}, []string{"cache", "result"}),
		CacheEntries: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tunebox_cache_entries",
			Help: "Current number of stored cache entries",
		}, []string{"cache"}),

		QueueSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tunebox_queue_length",
			Help: "Current number of queued entries per guild",
		}, []string{"guild"}),

		ReconnectAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tunebox_reconnect_attempts_total",
			Help: "Total number of reconnection attempts by outcome",
		}, []string{"outcome"}),
		TracksStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "tunebox_tracks_started_total",
			Help: "Total number of tracks started",
		}),

		ExtractionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tunebox_extraction_duration_seconds",
			Help:    "Time spent extracting media metadata",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
		ExtractionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "tunebox_extraction_failures_total",
			Help: "Total number of failed extractions",
		}),
	}
}

// CacheHit records a cache hit.
func (m *Metrics) CacheHit(cache string) {
	m.CacheRequests.WithLabelValues(cache, "hit").Inc()
}

// CacheMiss records a cache miss.
func (m *Metrics) CacheMiss(cache string) {
	m.CacheRequests.WithLabelValues(cache, "miss").Inc()
}

// CacheSize records the number of stored entries.
func (m *Metrics) CacheSize(cache string, n int) {
	m.CacheEntries.WithLabelValues(cache).Set(float64(n))
}

// QueueLength records a guild's queue length.
func (m *Metrics) QueueLength(guild string, n int) {
	m.QueueSize.WithLabelValues(guild).Set(float64(n))
}

// ReconnectAttempt records a reconnection outcome.
func (m *Metrics) ReconnectAttempt(outcome string) {
	m.ReconnectAttempts.WithLabelValues(outcome).Inc()
}

// TrackStarted records a track start.
func (m *Metrics) TrackStarted() {
	m.TracksStarted.Inc()
}

// ExtractionObserved records an extraction call.
func (m *Metrics) ExtractionObserved(d time.Duration, err error) {
	m.ExtractionDuration.Observe(d.Seconds())
	if err != nil {
		m.ExtractionFailures.Inc()
	}
}
