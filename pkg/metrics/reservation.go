package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Reservation outcomes.
const (
	OutcomeCommitted         = "committed"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeConflict          = "conflict"
	OutcomeRejected          = "rejected"
	OutcomeError             = "error"
)

// ReservationMetrics tracks the order reservation transaction.
type ReservationMetrics struct {
	outcomes *prometheus.CounterVec
	attempts prometheus.Histogram
	duration prometheus.Histogram
	stock    *prometheus.CounterVec
}

// NewReservationMetrics registers reservation metrics on reg. A nil registerer
// yields a no-op recorder.
func NewReservationMetrics(reg prometheus.Registerer) *ReservationMetrics {
	if reg == nil {
		return &ReservationMetrics{}
	}
	m := &ReservationMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Order reservation transactions by outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reservation_attempts",
			Help:      "Transaction attempts needed per reservation.",
			Buckets:   []float64{1, 2, 3, 4, 5, 8, 10},
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reservation_duration_seconds",
			Help:      "Wall time of a reservation including retries.",
			Buckets:   prometheus.DefBuckets,
		}),
		stock: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_updates_total",
			Help:      "Admin stock edits by mode.",
		}, []string{"mode"}),
	}
	reg.MustRegister(m.outcomes, m.attempts, m.duration, m.stock)
	return m
}

// ObserveReservation records one finished reservation.
func (m *ReservationMetrics) ObserveReservation(outcome string, attempts int, elapsed time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
	if attempts > 0 {
		m.attempts.Observe(float64(attempts))
	}
	m.duration.Observe(elapsed.Seconds())
}

// IncStockUpdate counts an admin SET/ADD edit.
func (m *ReservationMetrics) IncStockUpdate(mode string) {
	if m == nil || m.stock == nil {
		return
	}
	m.stock.WithLabelValues(normalizeLabel(mode)).Inc()
}
