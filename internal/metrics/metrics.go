// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recording outcomes for RecordingsTotal.
const (
	OutcomeAggregated = "aggregated"
	OutcomeSkippedMap = "skipped_map"
	OutcomeFailed     = "failed"
	OutcomeOverLimit  = "over_limit"
)

var (
	// RecordingsTotal counts recordings seen by directory aggregation.
	RecordingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roundscope_recordings_total",
		Help: "Recordings processed by directory aggregation, by outcome",
	}, []string{"outcome"})

	// RoutinesTotal counts routines added to trackers.
	RoutinesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roundscope_routines_total",
		Help: "Routines added to routine trackers",
	}, []string{"map"})

	// EstimateDuration tracks map-control estimation latency per frame.
	EstimateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roundscope_map_control_duration_seconds",
		Help:    "Map control estimation and reduction duration per frame",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14), // 50us to ~400ms
	}, []string{"map"})

	// FrameErrors counts frames a metric could not be computed for.
	FrameErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roundscope_frame_metric_errors_total",
		Help: "Frames recorded as missing, by metric",
	}, []string{"metric"})

	// HTTPRequestsTotal counts API requests by route pattern and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roundscope_http_requests_total",
		Help: "HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration tracks API request latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roundscope_http_request_duration_seconds",
		Help:    "HTTP request duration by method and route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// MergeDuration tracks tracker merge reductions.
	MergeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "roundscope_tracker_merge_duration_seconds",
		Help:    "Duration of merging per-recording trackers into one",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})
)

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
