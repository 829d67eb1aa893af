package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cacheReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketsync_cache_reads_total",
			Help: "Cache reads by resource kind and outcome (hit, miss, stale, dedup)",
		},
		[]string{"kind", "outcome"},
	)

	cacheFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketsync_cache_fetches_total",
			Help: "Completed cache fetches by resource kind and result",
		},
		[]string{"kind", "result"},
	)

	cacheFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketsync_cache_fetch_duration_seconds",
			Help:    "Duration of cache fetches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	inflightFetches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ticketsync_cache_inflight_fetches",
			Help: "Fetches currently in flight",
		},
	)

	cacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketsync_cache_evictions_total",
			Help: "Entries removed by the eviction sweep",
		},
	)

	uploadOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketsync_upload_outcomes_total",
			Help: "Event image submissions by terminal step and result",
		},
		[]string{"step", "result"},
	)

	bookingCancellations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketsync_booking_cancellations_total",
			Help: "Booking cancellations by outcome (cancelled, already_cancelled, error)",
		},
		[]string{"outcome"},
	)

	apiRequests = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketsync_api_request_duration_seconds",
			Help:    "API round trips by operation and status class",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "status"},
	)
)

func TrackCacheRead(kind, outcome string) {
	cacheReads.WithLabelValues(kind, outcome).Inc()
}

// TrackFetchStarted returns a func to call when the fetch completes.
func TrackFetchStarted(kind string) func(result string) {
	start := time.Now()
	inflightFetches.Inc()
	return func(result string) {
		inflightFetches.Dec()
		cacheFetches.WithLabelValues(kind, result).Inc()
		cacheFetchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
}

func TrackEvictions(n int) {
	cacheEvictions.Add(float64(n))
}

func TrackUpload(step, result string) {
	uploadOutcomes.WithLabelValues(step, result).Inc()
}

func TrackCancellation(outcome string) {
	bookingCancellations.WithLabelValues(outcome).Inc()
}

func TrackAPIRequest(op, status string, elapsed time.Duration) {
	apiRequests.WithLabelValues(op, status).Observe(elapsed.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
