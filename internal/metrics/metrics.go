// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "verifyhub"

var (
	Activations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "license_activations_total",
		Help:      "License activation attempts by outcome.",
	}, []string{"outcome"})

	Validations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "license_validations_total",
		Help:      "License validations by resulting status.",
	}, []string{"status"})

	UsageIncrements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "license_usage_increments_total",
		Help:      "Usage increments by whether they were applied.",
	}, []string{"applied"})

	TelemetryIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "telemetry_records_total",
		Help:      "Telemetry push outcomes by channel.",
	}, []string{"channel", "outcome"})

	SweepExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expiry_sweep_expired_total",
		Help:      "Licenses flipped to Expired by the sweeper.",
	})

	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expiry_sweep_runs_total",
		Help:      "Expiry sweeps by outcome.",
	}, []string{"outcome"})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "expiry_sweep_duration_seconds",
		Help:      "Duration of expiry sweeps.",
		Buckets:   prometheus.DefBuckets,
	})

	VerificationSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verification_sessions_total",
		Help:      "Verification session events by channel.",
	}, []string{"channel", "event"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Middleware records request counts and latency keyed by the matched route, not the
// raw path, to keep label cardinality bounded.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func Bool(b bool) string {
	return strconv.FormatBool(b)
}
