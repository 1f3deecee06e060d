package booking

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	bookingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "booking",
			Name:      "requests_total",
			Help:      "Booking requests by outcome (accepted, duplicate).",
		},
		[]string{"outcome"},
	)

	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "booking",
			Name:      "payments_total",
			Help:      "Payment confirmations by outcome (confirmed, partial).",
		},
		[]string{"outcome"},
	)
)

// RegisterMetrics registers the booking collectors with the default registry.
// Safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(bookingsTotal, paymentsTotal)
	})
}
