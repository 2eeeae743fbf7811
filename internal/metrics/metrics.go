// Package metrics provides Prometheus metrics for the reaper.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the reaper.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	EvaluationsTotal  *prometheus.CounterVec
	CacheLookupsTotal *prometheus.CounterVec
	APIFailuresTotal  *prometheus.CounterVec
	JoinsTotal        *prometheus.CounterVec
	ArchivesTotal     *prometheus.CounterVec
	CommandsTotal     *prometheus.CounterVec
	CommandDuration   *prometheus.HistogramVec
	EventsTotal       *prometheus.CounterVec
	EventsDropped     *prometheus.CounterVec
	DirectoryChannels prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		EvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reaper_evaluations_total",
				Help: "Channel disuse evaluations by result.",
			},
			[]string{"result"},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reaper_cache_lookups_total",
				Help: "Cache lookups during evaluation by result (hit, stale, miss).",
			},
			[]string{"result"},
		),
		APIFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reaper_api_failures_total",
				Help: "Failed Slack API calls by operation.",
			},
			[]string{"operation"},
		),
		JoinsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reaper_joins_total",
				Help: "Channel join attempts by result.",
			},
			[]string{"result"},
		),
		ArchivesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reaper_archives_total",
				Help: "Channel archive operations by result.",
			},
			[]string{"result"},
		),
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reaper_commands_total",
				Help: "Chat commands by kind and status.",
			},
			[]string{"command", "status"},
		),
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reaper_command_duration_seconds",
				Help:    "Command processing duration by kind.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"command"},
		),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reaper_events_total",
				Help: "Events consumed by the event loop by kind.",
			},
			[]string{"kind"},
		),
		EventsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reaper_events_dropped_total",
				Help: "Events dropped because the event loop queue was full, by kind.",
			},
			[]string{"kind"},
		),
		DirectoryChannels: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "reaper_directory_channels",
				Help: "Number of channels currently tracked by the directory.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.EvaluationsTotal)
	reg.MustRegister(m.CacheLookupsTotal)
	reg.MustRegister(m.APIFailuresTotal)
	reg.MustRegister(m.JoinsTotal)
	reg.MustRegister(m.ArchivesTotal)
	reg.MustRegister(m.CommandsTotal)
	reg.MustRegister(m.CommandDuration)
	reg.MustRegister(m.EventsTotal)
	reg.MustRegister(m.EventsDropped)
	reg.MustRegister(m.DirectoryChannels)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordEvaluation increments the evaluation counter.
func (m *Metrics) RecordEvaluation(result string) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(result).Inc()
}

// RecordCacheLookup increments the cache lookup counter.
func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordAPIFailure increments the failed API call counter.
func (m *Metrics) RecordAPIFailure(operation string) {
	if m == nil {
		return
	}
	m.APIFailuresTotal.WithLabelValues(operation).Inc()
}

// RecordJoin increments the join counter.
func (m *Metrics) RecordJoin(result string) {
	if m == nil {
		return
	}
	m.JoinsTotal.WithLabelValues(result).Inc()
}

// RecordArchive increments the archive counter.
func (m *Metrics) RecordArchive(result string) {
	if m == nil {
		return
	}
	m.ArchivesTotal.WithLabelValues(result).Inc()
}

// RecordCommand increments the command counter and observes its duration.
func (m *Metrics) RecordCommand(command, status string, seconds float64) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(command, status).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(seconds)
}

// RecordEvent increments the consumed event counter.
func (m *Metrics) RecordEvent(kind string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(kind).Inc()
}

// RecordEventDropped increments the dropped event counter.
func (m *Metrics) RecordEventDropped(kind string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(kind).Inc()
}

// SetDirectoryChannels sets the tracked channel count.
func (m *Metrics) SetDirectoryChannels(count int) {
	if m == nil {
		return
	}
	m.DirectoryChannels.Set(float64(count))
}
