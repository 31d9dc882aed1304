package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObservers(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveGeneration("success", 2*time.Second)
	m.ObserveGeneration("failed", time.Second)
	m.ObserveGeneration("success", time.Second)
	m.ObserveProjectOp("delete", nil)
	m.ObserveProjectOp("delete", errors.New("x"))
	m.ObserveHealth("healthy")
	m.AddWorkspaces(2)
	m.AddWorkspaces(-1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Generations.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Generations.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProjectOperations.WithLabelValues("delete", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HealthChecks.WithLabelValues("healthy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Workspaces))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveGeneration("success", time.Second)
		m.ObserveProjectOp("view", nil)
		m.ObserveHealth("unhealthy")
		m.AddWorkspaces(1)
		m.AddLiveConnections(1)
	})
}
