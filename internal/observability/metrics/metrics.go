package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AvailabilityMetrics exposes counters/histograms for slot computation.
type AvailabilityMetrics struct {
	requestsTotal   *prometheus.CounterVec
	slotsReturned   prometheus.Histogram
	computeDuration prometheus.Histogram
	cacheTotal      *prometheus.CounterVec
}

func NewAvailabilityMetrics(reg prometheus.Registerer) *AvailabilityMetrics {
	m := &AvailabilityMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "availability",
			Name:      "requests_total",
			Help:      "Total availability computations",
		}, []string{"outcome"}),
		slotsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "availability",
			Name:      "slots_returned",
			Help:      "Slots returned per availability request",
			Buckets:   []float64{0, 5, 10, 25, 50, 100, 250},
		}),
		computeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "availability",
			Name:      "compute_duration_seconds",
			Help:      "Latency of slot computation",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "availability",
			Name:      "cache_total",
			Help:      "Availability cache lookups",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.slotsReturned, m.computeDuration, m.cacheTotal)
	return m
}

func (m *AvailabilityMetrics) ObserveRequest(outcome string, slots int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		m.slotsReturned.Observe(float64(slots))
	}
	m.computeDuration.Observe(elapsed.Seconds())
}

func (m *AvailabilityMetrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheTotal.WithLabelValues(result).Inc()
}

// BookingMetrics counts booking write-path outcomes.
type BookingMetrics struct {
	holdsTotal        *prometheus.CounterVec
	appointmentsTotal *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		holdsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "holds",
			Name:      "total",
			Help:      "Hold creations by status",
		}, []string{"status"}),
		appointmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "appointments",
			Name:      "total",
			Help:      "Appointment transitions by action and status",
		}, []string{"action", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.holdsTotal, m.appointmentsTotal)
	return m
}

func (m *BookingMetrics) ObserveHold(status string) {
	if m == nil {
		return
	}
	m.holdsTotal.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveAppointment(action, status string) {
	if m == nil {
		return
	}
	m.appointmentsTotal.WithLabelValues(action, status).Inc()
}
