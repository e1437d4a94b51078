package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookingdesk",
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	upstreamRequests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bookingdesk",
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of booking API calls by operation and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op", "status"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookingdesk",
			Name:      "cache_lookups_total",
			Help:      "Count of booking API cache lookups by result.",
		},
		[]string{"result"},
	)

	bookingActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookingdesk",
			Name:      "booking_actions_total",
			Help:      "Count of booking create/update/cancel attempts by outcome.",
		},
		[]string{"action", "outcome"},
	)

	validationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookingdesk",
			Name:      "validation_failures_total",
			Help:      "Count of rejected booking windows by kind.",
		},
		[]string{"kind"},
	)

	remindersSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookingdesk",
			Name:      "reminders_total",
			Help:      "Count of upcoming-booking reminders by result.",
		},
		[]string{"result"},
	)

	staleLoads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookingdesk",
			Name:      "stale_loads_total",
			Help:      "Count of day-view loads discarded because a newer one started.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, upstreamRequests, cacheLookups, bookingActions, validationFailures, remindersSent, staleLoads)
	})
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func ObserveUpstream(op, status string, d time.Duration) {
	upstreamRequests.WithLabelValues(op, status).Observe(d.Seconds())
}

func IncCache(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}

func IncBookingAction(action, outcome string) {
	bookingActions.WithLabelValues(action, outcome).Inc()
}

func IncValidationFailure(kind string) {
	validationFailures.WithLabelValues(kind).Inc()
}

func IncStaleLoad() {
	staleLoads.Inc()
}

func IncReminder(result string) {
	remindersSent.WithLabelValues(result).Inc()
}
