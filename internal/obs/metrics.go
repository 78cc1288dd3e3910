package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

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

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the service considers itself ready.",
	})

	notificationsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Notifications durably recorded, by live delivery outcome.",
		},
		[]string{"delivered"},
	)

	notificationsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_dropped_total",
		Help: "Notifications dropped due to malformed recipient ids.",
	})

	cascadeUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "team_cascade_updates_total",
			Help: "Team members rewritten by assignment cascades.",
		},
		[]string{"op"},
	)

	historyEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "entry_history_evictions_total",
		Help: "History records evicted by the per-entry FIFO bound.",
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		ready,
		notificationsPublished,
		notificationsDropped,
		cascadeUpdates,
		historyEvictions,
	)
}

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetReady flips the readiness gauge.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
		return
	}
	ready.Set(0)
}

// IncNotificationPublished counts one durably recorded notification.
func IncNotificationPublished(delivered bool) {
	notificationsPublished.WithLabelValues(strconv.FormatBool(delivered)).Inc()
}

// IncNotificationDropped counts a notification rejected before persistence.
func IncNotificationDropped() { notificationsDropped.Inc() }

// IncCascadeUpdate counts one team member rewritten by an assignment cascade.
func IncCascadeUpdate(op string) { cascadeUpdates.WithLabelValues(op).Inc() }

// IncHistoryEviction counts one evicted history record.
func IncHistoryEviction() { historyEvictions.Inc() }

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses per-entity path segments so metric cardinality
// stays bounded.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) == 3 && parts[0] == "v1" && parts[1] == "entries" && parts[2] != "bulk" {
		return "/v1/entries/:id"
	}
	return p
}

// statusWriter captures the response code written by downstream handlers.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
