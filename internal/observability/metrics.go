package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamgw",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total gateway HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "streamgw",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Gateway HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	controlPlaneCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamgw",
			Subsystem: "control_plane",
			Name:      "calls_total",
			Help:      "Control plane calls by operation and outcome.",
		},
		[]string{"operation", "success"},
	)
	controlPlaneDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "streamgw",
			Subsystem: "control_plane",
			Name:      "call_duration_seconds",
			Help:      "Control plane call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "success"},
	)
	performanceClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "streamgw",
			Subsystem: "performance",
			Name:      "clients",
			Help:      "Connected performance stats websocket clients.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, controlPlaneCalls, controlPlaneDuration, performanceClients)
	})
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, route, statusLabel).Inc()
	httpDuration.WithLabelValues(method, route, statusLabel).Observe(duration.Seconds())
}

func RecordControlPlaneCall(operation string, duration time.Duration, err error) {
	RegisterMetrics()
	successLabel := strconv.FormatBool(err == nil)
	controlPlaneCalls.WithLabelValues(operation, successLabel).Inc()
	controlPlaneDuration.WithLabelValues(operation, successLabel).Observe(duration.Seconds())
}

func SetPerformanceClients(n int) {
	RegisterMetrics()
	performanceClients.Set(float64(n))
}
