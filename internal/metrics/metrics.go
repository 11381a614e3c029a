package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchwell",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status.",
		},
		[]string{"endpoint", "status"},
	)

	leadsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "matchwell",
			Name:      "leads_created_total",
			Help:      "Leads created from intake submissions.",
		},
	)

	verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchwell",
			Name:      "verifications_total",
			Help:      "Verification outcomes by result.",
		},
		[]string{"result"},
	)

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchwell",
			Name:      "bookings_total",
			Help:      "Booking state changes by status.",
		},
		[]string{"status"},
	)

	deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchwell",
			Name:      "deliveries_total",
			Help:      "Outbound message deliveries by channel and result.",
		},
		[]string{"channel", "result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, leadsCreated, verifications, bookings, deliveries)
	})
}

// IncHTTP increments the request counter for an endpoint/status pair.
func IncHTTP(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}

// IncLeadCreated counts a new lead.
func IncLeadCreated() {
	leadsCreated.Inc()
}

// IncVerification counts a verification outcome ("sent", "verified", "failed").
func IncVerification(result string) {
	verifications.WithLabelValues(result).Inc()
}

// IncBooking counts a booking transition into status.
func IncBooking(status string) {
	bookings.WithLabelValues(status).Inc()
}

// IncDelivery counts a delivery attempt outcome ("ok", "error").
func IncDelivery(channel, result string) {
	deliveries.WithLabelValues(channel, result).Inc()
}
