package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the widget booking flow.
type BookingMetrics struct {
	directoryLoads  *prometheus.CounterVec
	submissionTotal *prometheus.CounterVec
	submitLatency   *prometheus.HistogramVec
	sessionsOpened  prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		directoryLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "directory",
			Name:      "loads_total",
			Help:      "Total clinic directory load attempts",
		}, []string{"status"}),
		submissionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "form",
			Name:      "submissions_total",
			Help:      "Total booking form submission attempts",
		}, []string{"status"}),
		submitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "form",
			Name:      "submit_latency_seconds",
			Help:      "Latency of appointment inserts",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "widget",
			Name:      "sessions_opened_total",
			Help:      "Total widget sessions opened",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.directoryLoads, m.submissionTotal, m.submitLatency, m.sessionsOpened)
	return m
}

func (m *BookingMetrics) ObserveDirectoryLoad(status string) {
	if m == nil {
		return
	}
	m.directoryLoads.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveSubmission(status string) {
	if m == nil {
		return
	}
	m.submissionTotal.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveSubmitLatency(status string, seconds float64) {
	if m == nil {
		return
	}
	m.submitLatency.WithLabelValues(status).Observe(seconds)
}

func (m *BookingMetrics) ObserveSessionOpened() {
	if m == nil {
		return
	}
	m.sessionsOpened.Inc()
}
