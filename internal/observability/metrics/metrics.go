package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for scheduling flows.
type BookingMetrics struct {
	bookingsTotal     *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	slotQueryDuration prometheus.Histogram
	noShowSweepTotal  prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Total booking attempts by outcome",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "scheduling",
			Name:      "status_transitions_total",
			Help:      "Total appointment status transitions by target and outcome",
		}, []string{"target", "outcome"}),
		slotQueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "telehealth",
			Subsystem: "scheduling",
			Name:      "slot_query_duration_seconds",
			Help:      "Latency of available-slot computation",
			Buckets:   prometheus.DefBuckets,
		}),
		noShowSweepTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "scheduling",
			Name:      "no_show_transitions_total",
			Help:      "Appointments marked no-show by the sweep",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal, m.slotQueryDuration, m.noShowSweepTotal)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveTransition(target, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(target, outcome).Inc()
}

func (m *BookingMetrics) ObserveSlotQuery(seconds float64) {
	if m == nil {
		return
	}
	m.slotQueryDuration.Observe(seconds)
}

func (m *BookingMetrics) ObserveNoShows(count int) {
	if m == nil {
		return
	}
	m.noShowSweepTotal.Add(float64(count))
}
