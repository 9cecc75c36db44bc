package registration

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the registration counters. A nil *Metrics records nothing.
type Metrics struct {
	Registrations    *prometheus.CounterVec
	Activations      *prometheus.CounterVec
	ActivationEmails *prometheus.CounterVec
	Duration         *prometheus.HistogramVec
}

// NewMetrics registers the collectors with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Registrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registration_registrations_total",
				Help: "Total number of registration attempts by outcome",
			},
			[]string{"outcome"},
		),
		Activations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registration_activations_total",
				Help: "Total number of activation attempts by outcome",
			},
			[]string{"outcome"},
		),
		ActivationEmails: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registration_activation_emails_total",
				Help: "Total number of activation emails by delivery status",
			},
			[]string{"status"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "registration_operation_duration_seconds",
				Help:    "Duration of registration operations",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"operation"},
		),
	}
}

func (m *Metrics) registration(outcome string) {
	if m == nil || m.Registrations == nil {
		return
	}
	m.Registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) activation(outcome string) {
	if m == nil || m.Activations == nil {
		return
	}
	m.Activations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) activationEmail(status string) {
	if m == nil || m.ActivationEmails == nil {
		return
	}
	m.ActivationEmails.WithLabelValues(status).Inc()
}

func (m *Metrics) observe(operation string, start time.Time) {
	if m == nil || m.Duration == nil {
		return
	}
	m.Duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
