package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagectl",
			Subsystem: "transport",
			Name:      "frames_total",
			Help:      "Complete frames by direction.",
		},
		[]string{"node", "direction"},
	)
	frameDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagectl",
			Subsystem: "transport",
			Name:      "frame_drops_total",
			Help:      "Frames or buffered fragments dropped, by reason.",
		},
		[]string{"node", "reason"},
	)
	authRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagectl",
			Subsystem: "transport",
			Name:      "auth_rejections_total",
			Help:      "Inbound frames rejected for a missing or wrong api_key.",
		},
		[]string{"node"},
	)
	admissionOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagectl",
			Subsystem: "transport",
			Name:      "admission_total",
			Help:      "Accepted connections by admission policy and outcome.",
		},
		[]string{"node", "policy", "outcome"},
	)
	reconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagectl",
			Subsystem: "transport",
			Name:      "reconnect_attempts_total",
			Help:      "Pilot redial attempts after a failed dial or lost session.",
		},
		[]string{"node"},
	)
	activeSessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pagectl",
			Subsystem: "transport",
			Name:      "active_sessions",
			Help:      "Live sessions held by the session registry (0 or 1).",
		},
		[]string{"node"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagectl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total ops HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pagectl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Ops HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesTotal, frameDrops, authRejections,
			admissionOutcomes, reconnects, activeSessions,
			httpRequests, httpDuration,
		)
	})
}

func RecordFrame(node, direction string) {
	RegisterMetrics()
	framesTotal.WithLabelValues(node, direction).Inc()
}

func RecordFrameDrop(node, reason string) {
	RegisterMetrics()
	frameDrops.WithLabelValues(node, reason).Inc()
}

func RecordAuthRejection(node string) {
	RegisterMetrics()
	authRejections.WithLabelValues(node).Inc()
}

func RecordAdmission(node, policy, outcome string) {
	RegisterMetrics()
	admissionOutcomes.WithLabelValues(node, policy, outcome).Inc()
}

func RecordReconnectAttempt(node string) {
	RegisterMetrics()
	reconnects.WithLabelValues(node).Inc()
}

func SetActiveSessions(node string, n int) {
	RegisterMetrics()
	activeSessions.WithLabelValues(node).Set(float64(n))
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
