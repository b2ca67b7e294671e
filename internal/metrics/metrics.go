package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "drumbot"

var (
	once sync.Once

	reservationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_attempts_total",
			Help:      "Count of reserve calls by result.",
		},
		[]string{"result"},
	)

	reserveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reserve_duration_seconds",
			Help:      "Latency of reserve calls including the atomic insert.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	cancellations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancellations_total",
			Help:      "Count of cancel calls by result.",
		},
		[]string{"result"},
	)

	storeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Count of failed store operations.",
		},
		[]string{"op"},
	)

	botUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bot_updates_total",
			Help:      "Count of Telegram updates by kind.",
		},
		[]string{"kind"},
	)

	remindersSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_total",
			Help:      "Count of reminder deliveries by status.",
		},
		[]string{"status"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of JSON API requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservationAttempts, reserveDuration, cancellations, storeErrors, botUpdates, remindersSent, httpRequests)
	})
}

func ObserveReserve(result string, took time.Duration) {
	reservationAttempts.WithLabelValues(result).Inc()
	reserveDuration.Observe(took.Seconds())
}

func IncCancel(result string) {
	cancellations.WithLabelValues(result).Inc()
}

func IncStoreError(op string) {
	storeErrors.WithLabelValues(op).Inc()
}

func IncBotUpdate(kind string) {
	botUpdates.WithLabelValues(kind).Inc()
}

func IncReminder(status string) {
	remindersSent.WithLabelValues(status).Inc()
}

func IncHTTP(endpoint string, code int) {
	httpRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
}
