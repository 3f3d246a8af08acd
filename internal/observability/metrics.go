package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	envelopes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seance",
			Subsystem: "channel",
			Name:      "envelopes_total",
			Help:      "Envelopes observed by the medium, by kind and outcome.",
		},
		[]string{"node", "kind", "outcome"},
	)
	adapterFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seance",
			Subsystem: "store",
			Name:      "adapter_failures_total",
			Help:      "Store adapter failures isolated per key.",
		},
		[]string{"node", "action"},
	)
	circleMembers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "seance",
			Subsystem: "circle",
			Name:      "members",
			Help:      "Currently incorporated origins.",
		},
		[]string{"node"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seance",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "seance",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "route", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(envelopes, adapterFailures, circleMembers, httpRequests, httpDuration)
	})
}

// Envelope outcomes recorded against the channel subsystem.
const (
	OutcomeHandled  = "handled"
	OutcomeIgnored  = "ignored"
	OutcomeRejected = "rejected"
)

func RecordEnvelope(node, kind, outcome string) {
	RegisterMetrics()
	envelopes.WithLabelValues(node, kind, outcome).Inc()
}

func RecordAdapterFailure(node, action string) {
	RegisterMetrics()
	adapterFailures.WithLabelValues(node, action).Inc()
}

func SetCircleMembers(node string, count int) {
	RegisterMetrics()
	circleMembers.WithLabelValues(node).Set(float64(count))
}

func RecordHTTPRequest(node, method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, route, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, route, statusLabel).Observe(duration.Seconds())
}
