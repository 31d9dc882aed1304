// Package metrics defines the Prometheus collectors for sitecraft.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the application collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Generations        *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	ProjectOperations  *prometheus.CounterVec
	HealthChecks       *prometheus.CounterVec
	Workspaces         prometheus.Gauge
	LiveConnections    prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Generations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecraft_generations_total",
				Help: "Website generation attempts by outcome",
			},
			[]string{"outcome"},
		),
		GenerationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitecraft_generation_duration_seconds",
				Help:    "Latency of generation requests to the backend",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
			},
		),
		ProjectOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecraft_project_operations_total",
				Help: "Project history operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		HealthChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecraft_health_checks_total",
				Help: "Backend health probe results",
			},
			[]string{"status"},
		),
		Workspaces: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitecraft_workspaces",
				Help: "Tab workspaces currently held in memory",
			},
		),
		LiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitecraft_live_connections",
				Help: "Open WebSocket state feeds",
			},
		),
	}
}

// ObserveGeneration records one generation attempt.
func (m *Metrics) ObserveGeneration(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(outcome).Inc()
	m.GenerationDuration.Observe(d.Seconds())
}

// ObserveProjectOp records one history operation.
func (m *Metrics) ObserveProjectOp(operation string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ProjectOperations.WithLabelValues(operation, status).Inc()
}

// ObserveHealth records one probe result.
func (m *Metrics) ObserveHealth(status string) {
	if m == nil {
		return
	}
	m.HealthChecks.WithLabelValues(status).Inc()
}

// AddWorkspaces moves the workspace gauge by delta.
func (m *Metrics) AddWorkspaces(delta float64) {
	if m == nil {
		return
	}
	m.Workspaces.Add(delta)
}

// AddLiveConnections moves the connection gauge by delta.
func (m *Metrics) AddLiveConnections(delta float64) {
	if m == nil {
		return
	}
	m.LiveConnections.Add(delta)
}
