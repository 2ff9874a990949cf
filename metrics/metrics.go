package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dayok",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dayok",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dayok",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	activityCompletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dayok",
			Subsystem: "activity",
			Name:      "completions_total",
			Help:      "Credited daily activity completions.",
		},
		[]string{"kind"},
	)

	mintAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dayok",
			Subsystem: "mint",
			Name:      "attempts_total",
			Help:      "Achievement mint attempts by outcome.",
		},
		[]string{"type", "outcome"},
	)

	mintDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dayok",
			Subsystem: "mint",
			Name:      "duration_seconds",
			Help:      "Time spent waiting for mint transactions.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	reconcileTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dayok",
			Subsystem: "reconcile",
			Name:      "transitions_total",
			Help:      "Records changed by reconciliation.",
		},
		[]string{"kind"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		activityCompletions,
		mintAttempts,
		mintDuration,
		reconcileTransitions,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// HTTPStarted marks a request in flight and returns a func recording its completion.
func HTTPStarted() func(method, path string, status int) {
	httpInFlight.Inc()
	start := time.Now()
	return func(method, path string, status int) {
		httpInFlight.Dec()
		httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

func RecordActivity(kind string) {
	activityCompletions.WithLabelValues(kind).Inc()
}

// RecordMint counts a mint attempt; outcome is one of minted, already_minted, not_eligible,
// in_progress, failed.
func RecordMint(achievementType, outcome string, d time.Duration) {
	mintAttempts.WithLabelValues(achievementType, outcome).Inc()
	if d > 0 {
		mintDuration.Observe(d.Seconds())
	}
}

func RecordReconcile(kind string, n int) {
	if n > 0 {
		reconcileTransitions.WithLabelValues(kind).Add(float64(n))
	}
}
