package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "revibes",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "revibes",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "revibes",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	pointEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "revibes",
			Subsystem: "points",
			Name:      "entries_total",
			Help:      "Total number of ledger entries written.",
		},
		[]string{"type", "source"},
	)

	pointAmount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "revibes",
			Subsystem: "points",
			Name:      "amount_total",
			Help:      "Total points earned or deducted.",
		},
		[]string{"type"},
	)

	orderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "revibes",
			Subsystem: "logistics",
			Name:      "order_transitions_total",
			Help:      "Logistic order status transitions.",
		},
		[]string{"status"},
	)

	exchangeTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "revibes",
			Subsystem: "exchange",
			Name:      "transactions_total",
			Help:      "Exchange transaction status transitions.",
		},
		[]string{"status"},
	)

	rewardClaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "revibes",
			Subsystem: "rewards",
			Name:      "claims_total",
			Help:      "Voucher and mission reward claims.",
		},
		[]string{"kind"},
	)

	maintenanceRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "revibes",
			Subsystem: "maintenance",
			Name:      "job_runs_total",
			Help:      "Total number of maintenance sweeps.",
		},
		[]string{"job", "success"},
	)

	maintenanceAffected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "revibes",
			Subsystem: "maintenance",
			Name:      "records_affected_total",
			Help:      "Records changed by maintenance sweeps.",
		},
		[]string{"job"},
	)

	maintenanceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "revibes",
			Subsystem: "maintenance",
			Name:      "job_run_duration_seconds",
			Help:      "Duration of maintenance sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"job"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		pointEntries,
		pointAmount,
		orderTransitions,
		exchangeTransitions,
		rewardClaims,
		maintenanceRuns,
		maintenanceAffected,
		maintenanceDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordPointEntry records a ledger movement.
func RecordPointEntry(entryType, source string, amount int64) {
	pointEntries.WithLabelValues(entryType, source).Inc()
	pointAmount.WithLabelValues(entryType).Add(float64(amount))
}

// RecordOrderTransition records a logistic order entering status.
func RecordOrderTransition(status string) {
	orderTransitions.WithLabelValues(status).Inc()
}

// RecordExchangeTransition records an exchange transaction entering status.
func RecordExchangeTransition(status string) {
	exchangeTransitions.WithLabelValues(status).Inc()
}

// RecordClaim records a voucher or mission reward claim.
func RecordClaim(kind string) {
	rewardClaims.WithLabelValues(kind).Inc()
}

// RecordMaintenanceRun records metrics for a maintenance sweep.
func RecordMaintenanceRun(job string, affected int, duration time.Duration, success bool) {
	if job == "" {
		job = "unknown"
	}
	if duration <= 0 {
		duration = time.Millisecond
	}
	maintenanceRuns.WithLabelValues(job, strconv.FormatBool(success)).Inc()
	maintenanceDuration.WithLabelValues(job).Observe(duration.Seconds())
	if affected > 0 {
		maintenanceAffected.WithLabelValues(job).Add(float64(affected))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath prefers the matched route template so ids do not explode
// label cardinality.
func canonicalPath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	trimmed := strings.Trim(r.URL.Path, "/")
	if trimmed == "" {
		return "/"
	}
	return "/" + strings.SplitN(trimmed, "/", 2)[0]
}
