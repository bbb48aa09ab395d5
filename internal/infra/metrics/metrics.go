// Package metrics exposes bot activity to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Observer records a value with optional label values.
type Observer interface {
	Observe(val float64, labels ...string)
	prometheus.Collector
}

// Metrics holds every collector the bot reports.
type Metrics struct {
	Commands      Observer // plugin, command
	TracksStarted Observer
	TracksFailed  Observer // reason
	TrackLoad     Observer // seconds spent in Player.Load
	QueueLength   Observer // guild
	VoiceSessions Observer
	MessagesSent  Observer // result
}

// New creates the bot's collectors.
func New() *Metrics {
	return &Metrics{
		Commands: NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "decobox",
					Subsystem: "commands",
					Name:      "invocations_total",
					Help:      "Number of commands dispatched to plugins.",
				},
				[]string{"plugin", "command"},
			),
		),
		TracksStarted: NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "decobox",
					Subsystem: "playback",
					Name:      "tracks_started_total",
					Help:      "Number of tracks that started playing.",
				},
			),
		),
		TracksFailed: NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "decobox",
					Subsystem: "playback",
					Name:      "tracks_failed_total",
					Help:      "Number of tracks discarded because they could not start.",
				},
				[]string{"reason"},
			),
		),
		TrackLoad: NewPromHistogram(
			prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
					Namespace: "decobox",
					Subsystem: "playback",
					Name:      "track_load_seconds",
					Help:      "How long extracting and preparing a track takes.",
				},
			),
		),
		QueueLength: NewPromGaugeVec(
			prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: "decobox",
					Subsystem: "playback",
					Name:      "queue_length",
					Help:      "Pending requests per guild.",
				},
				[]string{"guild"},
			),
		),
		VoiceSessions: NewPromGauge(
			prometheus.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "decobox",
					Subsystem: "voice",
					Name:      "sessions",
					Help:      "Number of connected voice sessions.",
				},
			),
		),
		MessagesSent: NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "decobox",
					Subsystem: "chat",
					Name:      "messages_sent_total",
					Help:      "Number of chat messages sent, by result.",
				},
				[]string{"result"},
			),
		),
	}
}

// Collectors returns every collector for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Commands,
		m.TracksStarted,
		m.TracksFailed,
		m.TrackLoad,
		m.QueueLength,
		m.VoiceSessions,
		m.MessagesSent,
	}
}

// Handler registers m with a fresh registry and returns the scrape handler.
func (m *Metrics) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(m.Collectors()...)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
