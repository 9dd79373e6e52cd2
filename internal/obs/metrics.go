package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// VotesCast counts individual ballot choices stored.
	VotesCast = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evotar_votes_cast_total",
		Help: "Ballot choices recorded.",
	})

	// Tabulations counts tabulation runs by strategy and outcome.
	Tabulations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evotar_tabulations_total",
			Help: "Result tabulation runs.",
		},
		[]string{"strategy", "outcome"},
	)

	// SyslogFallbackDepth is the number of system log events waiting for retry.
	SyslogFallbackDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "evotar_syslog_fallback_depth",
		Help: "System log events queued in memory after a failed insert.",
	})

	// SyslogDropped counts lost system log events. Reason is "full" for
	// evictions from the fallback queue and "rejected" for events the store
	// refused outright.
	SyslogDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evotar_syslog_dropped_total",
			Help: "System log events dropped.",
		},
		[]string{"reason"},
	)

	initOnce sync.Once
)

// Init registers metrics in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight,
			httpRequestsTotal,
			httpRequestDuration,
			VotesCast,
			Tabulations,
			SyslogFallbackDepth,
			SyslogDropped,
		)
	})
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records in-flight, total and latency metrics per route.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := routePattern(r)
		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}

// routePattern uses the matched chi pattern so ids do not explode label
// cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
