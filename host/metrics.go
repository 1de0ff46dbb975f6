package host

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts units and dispatched messages. A nil *Metrics records nothing.
type Metrics struct {
	units    *prometheus.CounterVec
	messages *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the host instruments against reg, the default registerer when nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		units: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stepbystep",
				Subsystem: "host",
				Name:      "units_total",
				Help:      "Atomic units run by the host, by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stepbystep",
				Subsystem: "host",
				Name:      "messages_total",
				Help:      "Messages dispatched by the host, by message kind.",
			},
			[]string{"kind"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "stepbystep",
				Subsystem: "host",
				Name:      "unit_seconds",
				Help:      "Histogram of unit durations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}
	reg.MustRegister(m.units, m.messages, m.duration)
	return m
}

func (m *Metrics) observeUnit(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.units.WithLabelValues(kind, outcome).Inc()
	m.duration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) observeMessage(kind string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(kind).Inc()
}
