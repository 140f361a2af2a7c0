// Package metrics exposes Prometheus instrumentation for analyses, probe
// backends and the probe cache.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bitrate_analyses_total",
			Help: "Total number of file analyses by outcome",
		},
		[]string{"status"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bitrate_analysis_duration_seconds",
			Help:    "Wall time of one file analysis, probe included",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"backend"},
	)

	FramesAnalyzed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bitrate_frames_analyzed_total",
			Help: "Total number of frames fed to the analysis engine",
		},
	)

	ProbeCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bitrate_probe_cache_hits_total",
			Help: "Total number of probe cache hits",
		},
	)

	ProbeCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bitrate_probe_cache_misses_total",
			Help: "Total number of probe cache misses",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bitrate_http_request_duration_seconds",
			Help:    "Duration of HTTP API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordAnalysis records the outcome of one file analysis.
func RecordAnalysis(backend string, frames int, duration time.Duration, err error) {
	if err != nil {
		AnalysesTotal.WithLabelValues(StatusError).Inc()
		return
	}
	AnalysesTotal.WithLabelValues(StatusOK).Inc()
	AnalysisDuration.WithLabelValues(backend).Observe(duration.Seconds())
	FramesAnalyzed.Add(float64(frames))
}

func RecordCacheLookup(hit bool) {
	if hit {
		ProbeCacheHits.Inc()
		return
	}
	ProbeCacheMisses.Inc()
}

func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}
