package protocol

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Message results recorded by the telemetry counter.
const (
	resultHandled   = "handled"
	resultIgnored   = "ignored"
	resultMalformed = "malformed"
	resultDuplicate = "duplicate"
	resultError     = "error"
)

// Metrics holds the protocol's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	messages    *prometheus.CounterVec
	reaction    *prometheus.HistogramVec
	published   *prometheus.CounterVec
	consistency *prometheus.CounterVec
}

// NewMetrics creates the protocol collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pettracker_telemetry_messages_total",
				Help: "Telemetry messages received, by subtopic and result.",
			},
			[]string{"subtopic", "result"},
		),
		reaction: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pettracker_protocol_reaction_seconds",
				Help:    "Time spent reacting to one telemetry message.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"subtopic"},
		),
		published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pettracker_settings_published_total",
				Help: "Device settings published, by setting.",
			},
			[]string{"setting"},
		),
		consistency: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pettracker_consistency_errors_total",
				Help: "Reactions aborted because smart home data is corrupted.",
			},
			[]string{"kind"},
		),
	}
	reg.MustRegister(m.messages)
	reg.MustRegister(m.reaction)
	reg.MustRegister(m.published)
	reg.MustRegister(m.consistency)
	return m
}

func (m *Metrics) message(subtopic, result string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(subtopic, result).Inc()
}

func (m *Metrics) observe(subtopic string, d time.Duration) {
	if m == nil {
		return
	}
	m.reaction.WithLabelValues(subtopic).Observe(d.Seconds())
}

func (m *Metrics) settingPublished(setting string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(setting).Inc()
}

func (m *Metrics) consistencyError(kind string) {
	if m == nil {
		return
	}
	m.consistency.WithLabelValues(kind).Inc()
}
