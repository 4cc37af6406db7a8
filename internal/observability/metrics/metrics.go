package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReservationMetrics exposes counters for the reservation lifecycle.
type ReservationMetrics struct {
	proposalsTotal     *prometheus.CounterVec
	commitsTotal       *prometheus.CounterVec
	cancellationsTotal *prometheus.CounterVec
}

func NewReservationMetrics(reg prometheus.Registerer) *ReservationMetrics {
	m := &ReservationMetrics{
		proposalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tablebot",
			Subsystem: "reservation",
			Name:      "proposals_total",
			Help:      "Total reservation proposals by outcome",
		}, []string{"outcome"}),
		commitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tablebot",
			Subsystem: "reservation",
			Name:      "commits_total",
			Help:      "Total reservation commits by outcome",
		}, []string{"outcome"}),
		cancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tablebot",
			Subsystem: "reservation",
			Name:      "cancellations_total",
			Help:      "Total reservation cancellations by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.proposalsTotal, m.commitsTotal, m.cancellationsTotal)
	return m
}

func (m *ReservationMetrics) ObserveProposal(outcome string) {
	if m == nil {
		return
	}
	m.proposalsTotal.WithLabelValues(outcome).Inc()
}

func (m *ReservationMetrics) ObserveCommit(outcome string) {
	if m == nil {
		return
	}
	m.commitsTotal.WithLabelValues(outcome).Inc()
}

func (m *ReservationMetrics) ObserveCancellation(outcome string) {
	if m == nil {
		return
	}
	m.cancellationsTotal.WithLabelValues(outcome).Inc()
}

// CalendarMetrics tracks latency of calls to the remote calendar.
type CalendarMetrics struct {
	requestDuration *prometheus.HistogramVec
}

func NewCalendarMetrics(reg prometheus.Registerer) *CalendarMetrics {
	m := &CalendarMetrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tablebot",
			Subsystem: "calendar",
			Name:      "request_duration_seconds",
			Help:      "Latency of remote calendar requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestDuration)
	return m
}

func (m *CalendarMetrics) ObserveRequest(operation, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(operation, status).Observe(elapsed.Seconds())
}
