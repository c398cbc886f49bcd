// README: Prometheus counters for availability, orders, reservations and fail-open reads.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "laundry"

var (
	once sync.Once

	availabilityRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_requests_total",
			Help:      "Count of slot availability computations by kind.",
		},
		[]string{"kind"},
	)

	failOpen = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_fail_open_total",
			Help:      "Count of upstream read failures absorbed by a permissive fallback.",
		},
		[]string{"check"},
	)

	ordersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Count of orders placed by delivery type.",
		},
		[]string{"delivery_type"},
	)

	ordersCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_cancelled_total",
			Help:      "Count of orders cancelled by customers.",
		},
	)

	cancelRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_cancel_rejected_total",
			Help:      "Count of cancellation attempts rejected by reason.",
		},
		[]string{"reason"},
	)

	reservationRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_reservation_rejected_total",
			Help:      "Count of order placements refused because the slot was full.",
		},
		[]string{"kind"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			availabilityRequests,
			failOpen,
			ordersPlaced,
			ordersCancelled,
			cancelRejected,
			reservationRejected,
		)
	})
}

func IncAvailability(kind string) {
	availabilityRequests.WithLabelValues(kind).Inc()
}

func IncFailOpen(check string) {
	failOpen.WithLabelValues(check).Inc()
}

func IncOrderPlaced(deliveryType string) {
	ordersPlaced.WithLabelValues(deliveryType).Inc()
}

func IncOrderCancelled() {
	ordersCancelled.Inc()
}

func IncCancelRejected(reason string) {
	cancelRejected.WithLabelValues(reason).Inc()
}

func IncReservationRejected(kind string) {
	reservationRejected.WithLabelValues(kind).Inc()
}
