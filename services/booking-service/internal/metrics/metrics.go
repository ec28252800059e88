package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for the reservation flows.
type BookingMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	cancellationsTotal *prometheus.CounterVec
	waitlistJoins      prometheus.Counter
	remindersProcessed prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zapis",
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		cancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zapis",
			Subsystem: "booking",
			Name:      "cancellations_total",
			Help:      "Cancellation attempts by outcome",
		}, []string{"outcome"}),
		waitlistJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zapis",
			Subsystem: "booking",
			Name:      "waitlist_joins_total",
			Help:      "Waitlist entries created",
		}),
		remindersProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zapis",
			Subsystem: "booking",
			Name:      "reminders_processed_total",
			Help:      "Appointments processed by the daily reminder batch",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.cancellationsTotal, m.waitlistJoins, m.remindersProcessed)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveCancellation(outcome string) {
	if m == nil {
		return
	}
	m.cancellationsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveWaitlistJoin() {
	if m == nil {
		return
	}
	m.waitlistJoins.Inc()
}

func (m *BookingMetrics) ObserveRemindersProcessed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.remindersProcessed.Add(float64(n))
}
