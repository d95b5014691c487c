// Package metrics exposes prometheus instruments for complaint transitions and
// notification delivery.
package metrics

import (
	"net/http"

	"complaintdesk/core/complaints"
	"complaintdesk/core/notify"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	transitions        *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	deliveries         *prometheus.CounterVec
	complaintsByStatus *prometheus.GaugeVec
}

// New registers every instrument on a fresh registry, together with the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "complaintdesk_transitions_total",
			Help: "Complaint mutations by action and outcome",
		}, []string{"action", "outcome"}),
		transitionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "complaintdesk_transition_duration_seconds",
			Help:    "Complaint mutation latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"action"}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "complaintdesk_notification_deliveries_total",
			Help: "Notification delivery attempts by kind and result",
		}, []string{"kind", "result"}),
		complaintsByStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "complaintdesk_complaints",
			Help: "Stored complaints by status at the last refresh",
		}, []string{"status"}),
	}
}

func (m *Metrics) ObserveTransition(action complaints.Action, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(action), outcome).Inc()
	m.transitionDuration.WithLabelValues(string(action)).Observe(seconds)
}

func (m *Metrics) ObserveDelivery(kind notify.Kind, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.deliveries.WithLabelValues(string(kind), result).Inc()
}

// SetSummary publishes the per-status counts of s.
func (m *Metrics) SetSummary(s complaints.Summary) {
	if m == nil {
		return
	}
	m.complaintsByStatus.WithLabelValues(string(complaints.StatusPending)).Set(float64(s.Pending))
	m.complaintsByStatus.WithLabelValues(string(complaints.StatusForwarded)).Set(float64(s.Forwarded))
	m.complaintsByStatus.WithLabelValues(string(complaints.StatusResolved)).Set(float64(s.Resolved))
	m.complaintsByStatus.WithLabelValues(string(complaints.StatusRejected)).Set(float64(s.Rejected))
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
