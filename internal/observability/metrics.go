package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Event outcomes reported by the target tree.
const (
	OutcomeSent       = "sent"
	OutcomeSuppressed = "suppressed"
	OutcomeRejected   = "rejected"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgetrack",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"component", "method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edgetrack",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"component", "method", "route", "status"},
	)
	trackedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgetrack",
			Subsystem: "targets",
			Name:      "events_total",
			Help:      "TrackEvent calls by outcome.",
		},
		[]string{"outcome"},
	)
	targetCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "edgetrack",
			Subsystem: "targets",
			Name:      "registered",
			Help:      "Transmission targets currently registered.",
		},
	)
	queueDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "edgetrack",
			Subsystem: "channel",
			Name:      "dropped_total",
			Help:      "Events dropped because the channel buffer was full or delivery gave up.",
		},
	)
	deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgetrack",
			Subsystem: "channel",
			Name:      "deliveries_total",
			Help:      "Sink delivery attempts.",
		},
		[]string{"success"},
	)
	deliveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "edgetrack",
			Subsystem: "channel",
			Name:      "delivery_duration_seconds",
			Help:      "Sink delivery duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			trackedEvents, targetCount,
			queueDropped, deliveries, deliveryDuration,
		)
	})
}

func RecordHTTPRequest(component, method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(component, method, route, statusLabel).Inc()
	httpDuration.WithLabelValues(component, method, route, statusLabel).Observe(duration.Seconds())
}

// RecordEvent counts one TrackEvent outcome. Tokens are deliberately not a label.
func RecordEvent(outcome string) {
	RegisterMetrics()
	trackedEvents.WithLabelValues(outcome).Inc()
}

func SetTargetCount(n int) {
	RegisterMetrics()
	targetCount.Set(float64(n))
}

func RecordDropped() {
	RegisterMetrics()
	queueDropped.Inc()
}

func RecordDelivery(success bool, duration time.Duration) {
	RegisterMetrics()
	deliveries.WithLabelValues(strconv.FormatBool(success)).Inc()
	deliveryDuration.Observe(duration.Seconds())
}
