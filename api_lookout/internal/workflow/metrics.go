package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookout_workflow_stage_runs_total",
		Help: "Workflow stage runs by outcome.",
	}, []string{"stage", "outcome"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lookout_workflow_stage_duration_seconds",
		Help:    "Wall-clock duration of workflow stages.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{"stage"})
)
